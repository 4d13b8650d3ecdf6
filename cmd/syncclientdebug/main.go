// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

// Command syncclientdebug drives the sliding-sync engine against a real
// server and prints every emitted event, for manual poking at the wire
// protocol without wiring up a full matrix client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matrix-org/sync3-client/internal"
	"github.com/matrix-org/sync3-client/setup/config"
	"github.com/matrix-org/sync3-client/sync3"
	"github.com/matrix-org/sync3-client/sync3/extensions"
	"github.com/matrix-org/sync3-client/sync3/transport"
)

var (
	proxyBaseURL string
	accessToken  string
	logLevel     string
	timeoutSecs  int
	configPath   string
)

func main() {
	root := &cobra.Command{
		Use:   "syncclientdebug",
		Short: "Drive a sliding-sync engine against a real server and print its events",
	}
	root.PersistentFlags().StringVar(&proxyBaseURL, "proxy-base-url", "", "sliding sync proxy/server base URL (overrides --config)")
	root.PersistentFlags().StringVar(&accessToken, "access-token", "", "matrix access token")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logrus log level")
	root.PersistentFlags().IntVar(&timeoutSecs, "timeout-seconds", 30, "per-request timeout")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (setup/config.Config); flags above override its fields")
	root.MarkPersistentFlagRequired("access-token")

	root.AddCommand(newRunCmd())
	root.AddCommand(newResendDemoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var listName string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync loop with a single list covering the first 20 rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, cleanup, err := buildController(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctrl.SetList(listName, sync3.ListShape{
				Ranges: sync3.SliceRanges{{0, 19}},
				Sort:   []string{sync3.SortByRecency},
			})
			ctrl.Start()

			waitForSignal()
			ctrl.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&listName, "list-name", "debug", "name of the list to create")
	return cmd
}

func newResendDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resend-demo",
		Short: "Start the loop, then immediately force a resend to demonstrate in-flight cancellation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, cleanup, err := buildController(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctrl.SetList("demo", sync3.ListShape{Ranges: sync3.SliceRanges{{0, 9}}})
			ctrl.Start()
			ctrl.Resend()

			waitForSignal()
			ctrl.Stop()
			return nil
		},
	}
	return cmd
}

func buildController(cmd *cobra.Command) (*sync3.Controller, func(), error) {
	if err := internal.SetupLogging(logLevel); err != nil {
		return nil, nil, err
	}
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = *loaded
	}
	if cmd.Flags().Changed("proxy-base-url") {
		cfg.ProxyBaseURL = proxyBaseURL
	}
	if cmd.Flags().Changed("timeout-seconds") {
		cfg.TimeoutSeconds = timeoutSecs
	}
	cfg.Defaults(config.DefaultOpts{})

	var configErrs config.ConfigErrors
	cfg.Verify(&configErrs)
	if len(configErrs) > 0 {
		return nil, nil, configErrs
	}

	lists := sync3.NewListModel()
	log := internal.Logger(context.Background())
	subs := sync3.NewSubscriptionManager(log)
	for name, shape := range cfg.Lists {
		lists.SetList(name, shape)
	}
	subs.ModifyRoomSubscriptionInfo(cfg.DefaultRoomSubscription)
	exts := sync3.NewExtensionRegistry()
	if err := registerConfiguredExtensions(exts, cfg.Extensions); err != nil {
		return nil, nil, err
	}

	probe := newPrintingSink()
	httpTransport := transport.NewHTTPTransport(cfg.ProxyBaseURL, transport.AccessTokenFunc(
		func(ctx context.Context) (string, error) { return accessToken, nil },
	), nil)

	ctrl := sync3.NewController(sync3.Config{
		ProxyBaseURL:  cfg.ProxyBaseURL,
		Timeout:       cfg.Timeout(),
		ConnID:        cfg.ConnID,
		HTTPTransport: httpTransport,
		Log:           log,
	}, lists, subs, exts, probe)

	return ctrl, func() {}, nil
}

// registerConfiguredExtensions constructs and registers the built-in
// extensions named in cfg, in a fixed order so registration (and
// therefore pre/post-phase iteration) is deterministic across runs.
// Unknown names are rejected rather than silently ignored, since a typo
// in a config file should fail loudly, not fail to sync e2ee/receipts.
func registerConfiguredExtensions(exts *sync3.ExtensionRegistry, configured map[string]config.ExtensionConfig) error {
	for _, name := range []string{"account_data", "e2ee", "receipts", "to_device", "typing"} {
		ec, ok := configured[name]
		if !ok || !ec.Enabled {
			continue
		}
		var ext sync3.Extension
		switch name {
		case "account_data":
			ext = &extensions.AccountData{Lists: ec.Lists, Rooms: ec.Rooms}
		case "e2ee":
			ext = &extensions.E2EE{}
		case "receipts":
			ext = &extensions.Receipts{Lists: ec.Lists, Rooms: ec.Rooms}
		case "to_device":
			ext = &extensions.ToDevice{Limit: ec.Limit}
		case "typing":
			ext = &extensions.Typing{RoomIDs: ec.Rooms}
		}
		if err := exts.Register(ext); err != nil {
			return err
		}
	}
	for name := range configured {
		switch name {
		case "account_data", "e2ee", "receipts", "to_device", "typing":
		default:
			return fmt.Errorf("config: unknown extension %q", name)
		}
	}
	return nil
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

type printingSink struct{}

func newPrintingSink() printingSink { return printingSink{} }

func (printingSink) OnRoomData(e sync3.RoomDataEvent) {
	fmt.Printf("RoomData room_id=%s name=%q timeline=%d\n", e.RoomID, e.Data.Name, len(e.Data.Timeline))
}

func (printingSink) OnListUpdate(e sync3.ListUpdateEvent) {
	fmt.Printf("ListUpdate list=%s joined_count=%d rooms=%v\n", e.ListName, e.JoinedCount, e.Rooms)
}

func (printingSink) OnLifecycle(e sync3.LifecycleEvent) {
	if e.Err != nil {
		fmt.Printf("Lifecycle state=%s err=%v\n", e.State, e.Err)
		return
	}
	fmt.Printf("Lifecycle state=%s\n", e.State)
}
