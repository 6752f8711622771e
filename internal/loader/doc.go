// Package loader reads price and category tables from the configured
// source: CSV or xlsx files, a relational database through GORM, an
// analytical Postgres warehouse through pgx, or CSV objects in a Google
// Cloud Storage bucket.
//
// Every source returns *table.Table values with canonical column names
// (date, product_id, category_id, name, price and id, name, weight,
// hierarchy, parent) so the calculator does not care where data came from.
package loader
