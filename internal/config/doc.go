// Package config provides configuration parsing for weft projects.
//
// The configuration is stored in weft.json or weft.yaml in the project
// directory. A project without a configuration file runs with defaults.
//
// # Configuration File Structure
//
//	log:
//	  level: debug
//	  format: json
//	scheduler:
//	  frameInterval: 16ms
//	observation:
//	  collections: true
//	metrics:
//	  enabled: true
//	  namespace: weft
//	preview:
//	  host: localhost
//	  port: 7070
//	snapshot:
//	  bucket: renders
//	  prefix: previews/
//	  region: eu-west-1
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Preview:", cfg.PreviewAddress())
package config
