// Command kvs-client is the CLI counterpart to kvs-server: it sends one
// framed set/get/rm request over TCP and maps the response to stdout/stderr
// and an exit code. set and rm exit non-zero on an ERROR response; get
// prints "Key not found" and exits zero when the key is absent.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/dd0wney/kvs/pkg/pools"
)

const defaultAddr = "127.0.0.1:4000"

type request struct {
	Cmd   string `json:"cmd"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "set":
		runSet(os.Args[2:])
	case "get":
		runGet(os.Args[2:])
	case "rm":
		runRemove(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kvs-client <set|get|rm> [-addr IP:PORT] KEY [VALUE]")
}

func runSet(args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "server address")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 2 {
		usage()
		os.Exit(1)
	}

	resp, err := roundTrip(*addr, request{Cmd: "Set", Key: rest[0], Value: rest[1]})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if strings.HasPrefix(resp, "ERROR") {
		os.Exit(1)
	}
	os.Exit(0)
}

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "server address")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 1 {
		usage()
		os.Exit(1)
	}

	resp, err := roundTrip(*addr, request{Cmd: "Get", Key: rest[0]})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if strings.HasPrefix(resp, "ERROR") {
		fmt.Println("Key not found")
		os.Exit(0)
	}
	fmt.Println(resp)
	os.Exit(0)
}

func runRemove(args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "server address")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 1 {
		usage()
		os.Exit(1)
	}

	resp, err := roundTrip(*addr, request{Cmd: "Remove", Key: rest[0]})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if strings.HasPrefix(resp, "ERROR") {
		fmt.Fprintln(os.Stderr, "Key not found")
		os.Exit(1)
	}
	os.Exit(0)
}

// roundTrip connects to addr, writes req as a length-prefixed JSON frame
// (4-byte big-endian total length, prefix included, then the body), and
// reads the response to EOF.
func roundTrip(addr string, req request) (string, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	frame := pools.NewBufferBuilder(4 + len(body))
	defer frame.Release()
	frame.WriteUint32BE(uint32(4 + len(body)))
	frame.Write(body)
	if _, err := conn.Write(frame.Bytes()); err != nil {
		return "", err
	}

	resp, err := io.ReadAll(conn)
	if err != nil {
		return "", err
	}
	return string(resp), nil
}
