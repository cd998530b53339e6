package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/apoorvam/goterminal"
	"golang.org/x/term"

	"github.com/relaytransfer/relay/pkg/relayclient"
	"github.com/relaytransfer/relay/pkg/transfer"
)

// This is a terminal escape code to erase the rest of the line, then
// carriage-return, matching cmd/jcp's progress-line redraw.
var eraseAndCR = append([]byte{0x1b}, []byte("[0K\r")...)

func main() {
	addr := flag.String("addr", relayclient.DefaultSignalServerURL, "rendezvous server URL")
	saveDir := flag.String("out", ".", "directory to save received files into (receive mode)")
	quiet := flag.Bool("q", false, "quiet, no progress report")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
	}

	c := relayclient.New(256)

	switch args[0] {
	case "send":
		if len(args) < 2 {
			usage()
		}
		runSend(c, args[1:], *addr, *quiet)
	case "receive":
		if len(args) < 2 {
			usage()
		}
		runReceive(c, args[1], *saveDir, *addr, *quiet)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n  relay-client send <file> [<file>...]\n  relay-client receive <code>\n")
	os.Exit(1)
}

func runSend(c *relayclient.Client, paths []string, addr string, quiet bool) {
	handle, err := c.StartSend(paths, addr)
	if err != nil {
		fatalf("relay-client: %v", err)
	}
	fmt.Printf("code: %s\n", handle.Code)
	drainEvents(c, handle.SessionID, quiet)
}

func runReceive(c *relayclient.Client, code, saveDir, addr string, quiet bool) {
	sessionID, err := c.StartReceive(code, saveDir, addr)
	if err != nil {
		fatalf("relay-client: %v", err)
	}
	drainEvents(c, sessionID, quiet)
}

// drainEvents prints state and progress updates for one session until
// it reaches TransferComplete or Error, mirroring cmd/jcp's
// select-loop-over-UpdateProgress-until-Done pattern.
func drainEvents(c *relayclient.Client, sessionID string, quiet bool) {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	goTermWriter := goterminal.New(os.Stdout)
	lastUpdate := time.Now()

	for e := range c.Events() {
		if e.SessionID != sessionID {
			continue
		}
		switch e.Type {
		case transfer.EventFileOffer:
			fmt.Printf("\noffer: %d file(s)\n", len(e.Files))
			for _, f := range e.Files {
				fmt.Printf("  %s (%d bytes)\n", f.RelativePath, f.Size)
			}
			fmt.Printf("accept? [y/N] ")
			var answer string
			fmt.Scanln(&answer)
			c.AcceptTransfer(sessionID, answer == "y" || answer == "Y")
		case transfer.EventTransferProgress:
			if quiet || time.Since(lastUpdate) < 100*time.Millisecond {
				continue
			}
			lastUpdate = time.Now()
			str := fmt.Sprintf("%s: %.1f%% (%.0f KB/s, eta %s)",
				e.File, e.Progress.Percent(), e.Progress.Speed/1024, e.Progress.ETA.Round(time.Second))
			if !isTTY {
				// a redirected or piped stdout can't render carriage-return
				// redraws sanely; fall back to one line per update.
				fmt.Println(str)
				continue
			}
			goTermWriter.Clear()
			goTermWriter.Write(append([]byte(str), eraseAndCR...))
			goTermWriter.Print()
		case transfer.EventConnectionTypeChanged:
			fmt.Printf("\ntransport: %s\n", e.ConnectionType)
		case transfer.EventFileCompleted:
			fmt.Printf("\ndone: %s\n", e.File)
		case transfer.EventTransferComplete:
			fmt.Printf("\ntransfer complete\n")
			return
		case transfer.EventError:
			fatalf("relay-client: %s", e.Message)
		}
	}
}

func fatalf(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
