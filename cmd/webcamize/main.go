package main

import (
	"os"

	"github.com/bryanchriswhite/webcamize/cmd/webcamize/commands"
)

func main() {
	os.Exit(commands.Execute())
}
