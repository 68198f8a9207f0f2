package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newFeedCommand(cc *commandContext) *cobra.Command {
	var addr string
	var raw bool
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Tail resolution events from a running server",
		Long: `Without --api the command connects to the TCP feed at --addr and
reconnects when the server goes away. With --api it subscribes to the
WebSocket feed at <api>/ws instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if cc.remote() {
				wsURL, err := websocketURL(cc.apiURL, "/ws")
				if err != nil {
					return err
				}
				return tailWebSocket(ctx, wsURL, out, raw)
			}
			for {
				err := tailTCP(ctx, addr, out, raw)
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "feed disconnected: %v\n", err)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Second):
				}
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7070", "TCP feed address")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print event lines unformatted")
	return cmd
}

func tailTCP(ctx context.Context, addr string, out io.Writer, raw bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printEvent(out, sc.Bytes(), raw)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func tailWebSocket(ctx context.Context, wsURL string, out io.Writer, raw bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		printEvent(out, msg, raw)
	}
}

func printEvent(out io.Writer, line []byte, raw bool) {
	if raw {
		fmt.Fprintln(out, string(line))
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		fmt.Fprintln(out, string(line))
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Fprintln(out, string(b))
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: path}).String(), nil
}
