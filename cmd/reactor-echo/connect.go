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
	"errors"
	"fmt"
	"time"

	"github.com/nabbar/reactor/client"
	"github.com/nabbar/reactor/codec/length"
	"github.com/nabbar/reactor/loop"
	"github.com/nabbar/reactor/tcp"

	"github.com/spf13/cobra"
)

func newConnectCommand() *cobra.Command {
	var addr string
	var message string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "send one message to an echo server and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := runConnect(addr, message, timeout)
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7862", "server address (host:port)")
	cmd.Flags().StringVar(&message, "message", "hello reactor", "message to echo")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "max time to wait for the echoed reply")
	return cmd
}

// runConnect builds the loop, client and codec on a dedicated goroutine --
// loop.New binds a Loop to its calling goroutine, and that same goroutine
// must later call Loop() -- then waits for either the echoed reply or the
// timeout, both reported back over result.
func runConnect(addr, message string, timeout time.Duration) (string, error) {
	ep, err := resolveAddr(addr)
	if err != nil {
		return "", err
	}

	type outcome struct {
		reply string
		err   error
	}
	result := make(chan outcome, 2)

	go func() {
		own, err := loop.New()
		if err != nil {
			result <- outcome{err: err}
			return
		}
		defer func() { _ = own.Terminate() }()

		codec := length.New(length.Width4, 0, 1<<20)

		cl := client.New(own, ep, "echo-client")
		cl.SetMessageCallback(codec.OnMessage)
		cl.SetConnectCallback(func(conn *tcp.Connection) {
			if !conn.Connected() {
				return
			}
			codec.Send(conn, []byte(message))
		})
		codec.SetMessageCallback(func(_ *tcp.Connection, payload []byte, _ time.Time) {
			result <- outcome{reply: string(payload)}
			own.Quit()
		})

		cl.Connect()

		own.RunAfter(timeout, func(time.Time) {
			result <- outcome{err: errors.New("connect: timed out waiting for echoed reply")}
			own.Quit()
		})

		_ = own.Loop()
		cl.Stop()
	}()

	out := <-result
	return out.reply, out.err
}
