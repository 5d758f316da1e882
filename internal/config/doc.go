// Package config loads the optional espbuild project configuration.
//
// Configuration is discovered in the project directory as espbuild.yaml,
// espbuild.yml, espbuild.jsonc, or espbuild.json (first match wins).
// YAML is parsed with gopkg.in/yaml.v3; the JSON variants are parsed
// with github.com/tidwall/jsonc so comments and trailing commas are
// tolerated, the same treatment devcontainer.json gets elsewhere in the
// ecosystem.
//
// Every field is optional. An absent config file is not an error —
// espbuild runs with esp-rs defaults — but a file named explicitly via
// --config must exist.
package config
