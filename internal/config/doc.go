// Package config loads the application configuration.
//
// # Configuration Sources
//
// Values are resolved in the following order, later sources winning:
//
//	1. Default() values
//	2. A YAML file (config.yaml, configs/config.yaml or an explicit path)
//	3. Environment variables prefixed with CPI_
//
// # Environment Variables
//
// Variables follow the section/field layout of the YAML file:
//
//	CPI_SERVER_PORT=8080
//	CPI_CALCULATION_BASE_DATE=2023-01-01
//	CPI_CALCULATION_WEIGHTING=normalized
//	CPI_SOURCE_KIND=database
//	CPI_SOURCE_DSN=file:cpi.db
//	CPI_RESULTS_KIND=redis
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := cfg.Calculation.Options()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	calc, err := cpi.NewCalculator(opts, logger)
//
// The value is passed explicitly to the components that need it; there is
// no package-level configuration state.
package config
