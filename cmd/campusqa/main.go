package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "campusqa"}

	root.AddCommand(serveCMD(), migrateCMD(), indexCMD(), askCMD())
	_ = root.Execute()
}
