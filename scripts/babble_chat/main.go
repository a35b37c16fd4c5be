package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

func main() {
	if err := run(); err != nil {
		log.Printf("babble_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:5656", "babble server address")
	user := flag.String("user", "cli-user", "name to log in with")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", *addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	context.AfterFunc(ctx, func() { _ = conn.Close() })

	if _, err := fmt.Fprintf(conn, "LOGIN %s\n", *user); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Commands: PUBLISH <text>, FOLLOW <name>, TIMELINE, FCOUNT, RDV. Ctrl+C to exit.")
	fmt.Println("Plain text is published.")

	readErr := make(chan error, 1)
	go func() { readErr <- readLoop(conn) }()

	writeLoop(ctx, conn)

	stop()
	_ = conn.Close()
	if err := <-readErr; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func readLoop(conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read: %w", err)
	}
	fmt.Println("connection closed by server")
	return nil
}

func writeLoop(ctx context.Context, conn net.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, err := fmt.Fprintln(conn, toCommand(line)); err != nil {
				log.Printf("send: %v", err)
				return
			}
		}
	}
}

// toCommand publishes anything that does not start with a known command.
func toCommand(line string) string {
	first, _, _ := strings.Cut(line, " ")
	switch strings.ToUpper(first) {
	case "LOGIN", "PUBLISH", "FOLLOW", "TIMELINE", "FOLLOW_COUNT", "FCOUNT", "RDV":
		return line
	}
	if first != "" && first[0] >= '0' && first[0] <= '9' {
		return line
	}
	return "PUBLISH " + line
}
