/*
 * MIT License
 *
 * Copyright (c) 2026 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package main

import (
	"net"
	"time"

	"github.com/nabbar/reactor/codec/length"
	"github.com/nabbar/reactor/config"
	"github.com/nabbar/reactor/endpoint"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/server"
	"github.com/nabbar/reactor/signal"
	"github.com/nabbar/reactor/tcp"

	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

func newServeCommand(tunables *config.Tunables) *cobra.Command {
	var addr string
	var threads int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run a length-prefixed RFC 862 echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, threads, *tunables)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7862", "address to listen on (host:port)")
	cmd.Flags().IntVar(&threads, "threads", 0, "worker loop count (0 keeps every connection on the main loop)")
	return cmd
}

func runServe(addr string, threads int, tunables config.Tunables) error {
	ep, err := resolveAddr(addr)
	if err != nil {
		return err
	}

	own, err := loop.New()
	if err != nil {
		return err
	}
	own.SetPollTimeout(tunables.PollTimeout)
	defer func() { _ = own.Terminate() }()

	codec := length.New(length.Width4, 0, tunables.TypedMaxPayload)

	srv, err := server.New(own, ep, "echo", false)
	if err != nil {
		return err
	}
	srv.SetThreadNum(threads)
	srv.SetConnectCallback(func(conn *tcp.Connection) {
		jww.INFO.Printf("reactor-echo: %s connected", conn.Name())
	})
	srv.SetMessageCallback(codec.OnMessage)
	srv.SetHighWaterMarkCallback(func(conn *tcp.Connection, outstanding int) {
		jww.WARN.Printf("reactor-echo: %s crossed high-water mark at %d bytes", conn.Name(), outstanding)
	})
	codec.SetMessageCallback(func(conn *tcp.Connection, payload []byte, _ time.Time) {
		codec.Send(conn, payload)
	})

	sig, err := signal.New(own)
	if err != nil {
		return err
	}
	sig.AddSignal(int(unix.SIGINT), func(int) {
		jww.INFO.Printf("reactor-echo: signal received, shutting down")
		_ = srv.Close()
		own.Quit()
	})
	sig.AddSignal(int(unix.SIGTERM), func(int) {
		jww.INFO.Printf("reactor-echo: signal received, shutting down")
		_ = srv.Close()
		own.Quit()
	})

	if err := srv.Start(); err != nil {
		return err
	}
	jww.INFO.Printf("reactor-echo: serving on %s", ep)
	return own.Loop()
}

func resolveAddr(addr string) (endpoint.Endpoint, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return endpoint.Endpoint{}, err
	}
	return endpoint.Resolve(host, port)
}
