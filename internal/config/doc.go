// Package config loads, normalizes, and validates dicomsort configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), and
// reads TOML or YAML files depending on the file extension. Filter and
// anonymization tables are kept as loose maps here and checked for shape
// during validation; the sorter turns them into typed policies.
//
// Obtain settings through Load so downstream code receives absolute paths,
// canonical log formats, and configuration errors that match
// failure.ErrConfiguration.
package config
