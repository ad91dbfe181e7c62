// Package config defines the provisioning plan model.
//
// A plan ([Config]) names a target host, an optional database connection and
// an ordered list of [Step] entries. Plans are written in YAML or TOML and
// loaded with [LoadFile], which applies defaults and validates every step,
// including that seed rows referencing each other appear in dependency order.
//
// [DefaultPlan] returns the plan that provisions a pet host: PostgreSQL,
// the pet role and database, configuration files and the initial seed rows.
package config
