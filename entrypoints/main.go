package main

import (
	"github.com/Laisky/laisky-cms-admin/cmd"
)

func main() {
	cmd.Execute()
}
