// Package config provides configuration for distkit runs.
//
// Project settings live in an optional distkit.json (or distkit.yaml) at the
// project root. Run settings are taken from the environment, with a .env file
// in the project root filling in variables the real environment leaves unset.
// Environment beats file; file beats defaults.
//
// # Configuration File Structure
//
//	{
//	  "binary": "app",
//	  "main": "./cmd/app",
//	  "versionVar": "main.version",
//	  "buildDir": "build",
//	  "publish": {
//	    "bucket": "releases.example.com",
//	    "prefix": "app",
//	    "region": "us-east-1"
//	  },
//	  "serve": {
//	    "addr": "localhost:8089"
//	  }
//	}
//
// # Environment
//
//	GO           toolchain to build with ("go", "go1.22.4", or "latest")
//	BUILDDIR     build output directory
//	CGO_ENABLED  "0" (default) or "1"
//	GOOS/GOARCH  dist target, defaulting to the toolchain's host values
//
// # Usage
//
//	cfg, err := config.LoadProject(".", os.LookupEnv)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Output:", cfg.BuildPath())
package config
