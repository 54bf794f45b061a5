package build_info

// Set during build with -ldflags "-X github.com/mysomeid/sponsor/src/utils/build_info.Version=..."
var Version = "dev"
