//go:build ignore

// build.go - cpicli build system
// Usage: go run build.go [-target=TARGET]
// Targets: all, cpi, web, datagen, sample, clean, test, release

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const module = "cpicli"

var (
	rootDir string
	distDir string

	// Executable names (key = cmd directory, value = output name)
	executables = map[string]string{
		"cpi":     "cpi",
		"web":     "cpi-web",
		"datagen": "cpi-datagen",
	}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose bool
	Version string
	Race    bool
}

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("Failed to get current directory: %v", err))
	}
	rootDir = cwd
	distDir = filepath.Join(rootDir, "dist")

	if _, err := os.Stat(filepath.Join(rootDir, "go.mod")); os.IsNotExist(err) {
		panic(fmt.Sprintf("go.mod not found in %s. Run the build from the repository root.", rootDir))
	}
}

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	version := flag.String("version", "", "Version stamped into the binaries (defaults to contracts.Version)")
	race := flag.Bool("race", false, "Run tests with the race detector")
	flag.Parse()

	if runtime.GOOS == "windows" {
		for name, exe := range executables {
			executables[name] = exe + ".exe"
		}
	}

	printHeader()
	startTime := time.Now()

	ctx := &BuildContext{Verbose: *verbose, Version: *version, Race: *race}

	switch *target {
	case "all":
		buildAll(ctx)
	case "cpi", "web", "datagen":
		buildExecutable(*target, ctx)
	case "sample":
		generateSample(ctx)
	case "clean":
		clean(ctx.Verbose)
	case "test":
		runTests(ctx)
	case "release":
		buildRelease(ctx)
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "        cpicli - Build System              " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

// Build all executables and copy the example configuration
func buildAll(ctx *BuildContext) {
	printInfo("Building all components...")

	if err := checkPrerequisites(); err != nil {
		printError(fmt.Sprintf("Prerequisites check failed: %v", err))
		os.Exit(1)
	}
	prepareDirectories()

	for name := range executables {
		buildExecutable(name, ctx)
	}

	copyConfigFiles()
	printSuccess("All components built successfully!")
}

// ldflags stamps version, build time and commit into pkg/contracts
func ldflags(ctx *BuildContext) string {
	flags := []string{
		"-s", "-w",
		fmt.Sprintf("-X %s/pkg/contracts.BuildTime=%s", module, time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf("-X %s/pkg/contracts.GitCommit=%s", module, gitCommit()),
	}
	if ctx.Version != "" {
		printWarning("contracts.Version is a constant; -version only names the release directory")
	}
	return strings.Join(flags, " ")
}

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func buildExecutable(name string, ctx *BuildContext) {
	exeName, ok := executables[name]
	if !ok {
		printError(fmt.Sprintf("Unknown executable: %s", name))
		os.Exit(1)
	}

	printInfo(fmt.Sprintf("Building %s...", name))
	outputPath := filepath.Join(distDir, exeName)

	args := []string{"build"}
	if ctx.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "-ldflags", ldflags(ctx), "-o", outputPath, "./cmd/"+name)

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stderr = os.Stderr
	if ctx.Verbose {
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}

	if info, err := os.Stat(outputPath); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", exeName, float64(info.Size())/1024/1024))
	}
}

// generateSample writes sample inputs into dist/data with the datagen tool
func generateSample(ctx *BuildContext) {
	printInfo("Generating sample data...")
	prepareDirectories()

	cmd := exec.Command("go", "run", "./cmd/datagen", "-out", filepath.Join(distDir, "data"))
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Sample generation failed: %v", err))
		os.Exit(1)
	}
}

func clean(verbose bool) {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(distDir); err != nil {
		printWarning(fmt.Sprintf("Failed to remove %s: %v", distDir, err))
	} else if verbose {
		printInfo(fmt.Sprintf("Removed %s", distDir))
	}

	cmd := exec.Command("go", "clean", "-testcache")
	cmd.Dir = rootDir
	cmd.Run()
}

func runTests(ctx *BuildContext) {
	printInfo("Running Go tests...")

	args := []string{"test"}
	if ctx.Race {
		args = append(args, "-race")
	}
	if ctx.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")

	cmd := exec.Command("go", args...)
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}
	printSuccess("All tests passed")
}

// Build release binaries for linux/amd64 with cgo disabled
func buildRelease(ctx *BuildContext) {
	printInfo("Building release version...")
	clean(ctx.Verbose)

	os.Setenv("CGO_ENABLED", "0")
	os.Setenv("GOOS", "linux")
	os.Setenv("GOARCH", "amd64")

	buildAll(ctx)

	version := ctx.Version
	if version == "" {
		version = "dev"
	}
	content := fmt.Sprintf("cpicli %s\nCommit: %s\nBuilt: %s\n", version, gitCommit(), time.Now().Format("2006-01-02 15:04:05"))
	if err := os.WriteFile(filepath.Join(distDir, "VERSION.txt"), []byte(content), 0644); err != nil {
		printWarning(fmt.Sprintf("Failed to write VERSION.txt: %v", err))
	}

	printSuccess("Release build completed")
}

func checkPrerequisites() error {
	if err := exec.Command("go", "version").Run(); err != nil {
		return fmt.Errorf("Go is not installed or not in PATH")
	}
	return nil
}

func prepareDirectories() {
	dirs := []string{
		distDir,
		filepath.Join(distDir, "data"),
		filepath.Join(distDir, "reports"),
		filepath.Join(distDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			printError(fmt.Sprintf("Failed to create directory %s: %v", dir, err))
		}
	}
}

func copyConfigFiles() {
	src := filepath.Join(rootDir, "configs", "config.example.yaml")
	dest := filepath.Join(distDir, "configs", "config.yaml")
	if _, err := os.Stat(dest); err == nil {
		printInfo("Keeping existing configs/config.yaml")
		return
	}
	if err := copyFile(src, dest); err != nil {
		printWarning(fmt.Sprintf("Failed to copy %s: %v", src, err))
	}
}

func copyFile(src, dest string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, input, 0644)
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v] [-race] [-version=VERSION]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all      Build cpi, cpi-web and cpi-datagen into dist/ (default)")
	fmt.Println("  cpi      Build the one-shot calculator")
	fmt.Println("  web      Build the HTTP server")
	fmt.Println("  datagen  Build the sample data generator")
	fmt.Println("  sample   Generate sample inputs into dist/data")
	fmt.Println("  clean    Remove dist/ and the test cache")
	fmt.Println("  test     Run the Go test suite")
	fmt.Println("  release  Clean, then build linux/amd64 binaries with VERSION.txt")
}
