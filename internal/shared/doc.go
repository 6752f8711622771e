// Package shared holds helpers used by more than one package. The testutil
// subpackage provides log capture and the reference price/category fixtures
// used across the test suites.
package shared
