package main

import (
	"os"

	"emssimulate/cmd/simulator/app"
	"k8s.io/component-base/logs"
	_ "k8s.io/component-base/logs/json/register"
)

func main() {
	cmd := app.NewSimulatorCmd()
	logs.InitLogs()
	defer logs.FlushLogs()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
