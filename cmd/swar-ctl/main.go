package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"swar/internal/ipc"
)

func main() {
	def := os.Getenv("CTL_SOCKET")
	if def == "" {
		def = ipc.DefaultSocketPath
	}
	socket := cli.StringP("socket", "s", def, "Daemon control socket")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: swar-ctl [-s socket] say <text> | stop | status")
		cli.PrintDefaults()
	}
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0], Text: strings.Join(args[1:], " ")}
	rep, err := ipc.Send(*socket, msg)
	if err != nil {
		fmt.Println("swar-daemon not running:", err)
		os.Exit(1)
	}
	if !rep.OK {
		fmt.Println("error:", rep.Error)
		os.Exit(1)
	}
	fmt.Println(rep.Status)
}
