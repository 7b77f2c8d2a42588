// Package config provides configuration parsing for rally.
//
// The configuration is stored in rally.json, found by walking up from the
// working directory. RALLY_* environment variables override the file, and
// a deployment can run from the environment alone.
//
// # Configuration File Structure
//
//	{
//	  "pageUrl": "https://league.example.com/schedule/",
//	  "endpoints": {
//	    "availability": "",
//	    "subAvailability": "",
//	    "subPlanCreate": ""
//	  },
//	  "csrf": {"cookie": "csrftoken", "header": "X-CSRFToken"},
//	  "commit": {"timeout": "10s", "policy": "drop"},
//	  "server": {
//	    "listen": ":8080",
//	    "heartbeat": "30s",
//	    "allowedOrigins": ["https://league.example.com"]
//	  },
//	  "metrics": {"enabled": true, "namespace": "rally"},
//	  "tracing": {"enabled": false},
//	  "log": {"level": "info", "format": "json"}
//	}
//
// Empty endpoints fall back to the ones advertised by the page.
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	srv := live.NewServer(cfg.Live())
package config
