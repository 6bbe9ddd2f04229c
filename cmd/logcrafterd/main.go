package main

import "github.com/seungwoo7050/logcrafter/internal/cli"

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, buildTime)
	cli.Execute()
}
