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
	"github.com/nabbar/reactor/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCommand() *cobra.Command {
	var configFile string
	var tunables config.Tunables

	root := &cobra.Command{
		Use:   "reactor-echo",
		Short: "RFC 862 echo server and client built on the reactor library",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			tunables = loadTunables(configFile)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "optional viper config file (json/yaml/toml) overriding the reactor's default knobs")

	root.AddCommand(newServeCommand(&tunables))
	root.AddCommand(newConnectCommand())
	return root
}

// loadTunables reads path through viper, if given, and resolves it against
// the package defaults via config.Load.
func loadTunables(path string) config.Tunables {
	if path == "" {
		return config.Load(nil)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return config.Load(nil)
	}
	return config.Load(v)
}
