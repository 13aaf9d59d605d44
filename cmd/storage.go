package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sitevault/internal/display"
	"sitevault/internal/storage"
)

// createStorageCommand creates the storage command and its subcommands
func createStorageCommand() *cobra.Command {
	storageCmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect the configured storage destinations",
		Long: `Inspect the storage destinations backups are uploaded to: list remote
containers, test connectivity, and mint download URLs.`,
	}

	storageCmd.AddCommand(createStorageListCommand())
	storageCmd.AddCommand(createStorageTestCommand())
	storageCmd.AddCommand(createStorageURLCommand())
	return storageCmd
}

// createStorageListCommand creates the storage list subcommand
func createStorageListCommand() *cobra.Command {
	var kindName string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List backup containers on each destination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			adapters, err := selectAdapters(env, kindName)
			if err != nil {
				return err
			}

			listings := make(map[string][]storage.ObjectInfo, len(adapters))
			for _, adapter := range adapters {
				if err := adapter.Connect(ctx); err != nil {
					env.disp.Warning(fmt.Sprintf("%s: %v", adapter.Kind(), err))
					continue
				}
				objects, err := adapter.List(ctx, "")
				if err != nil {
					env.disp.Warning(fmt.Sprintf("%s: %v", adapter.Kind(), err))
					continue
				}
				listings[string(adapter.Kind())] = objects
			}

			if env.disp.Structured() {
				return env.disp.Emit(listings)
			}

			for _, adapter := range adapters {
				objects, ok := listings[string(adapter.Kind())]
				if !ok {
					continue
				}
				env.disp.Header(adapter.Name())
				if len(objects) == 0 {
					env.disp.Info("No objects")
					continue
				}
				table := env.disp.NewTable("NAME", "SIZE", "MODIFIED")
				table.Align(1, display.AlignRight)
				for _, obj := range objects {
					size := display.FormatBytes(obj.Size)
					if obj.IsDir {
						size = "-"
					}
					table.Append(obj.Name, size, obj.Modified.Format("2006-01-02 15:04:05"))
				}
				table.RenderTo(env.disp.Writer())
			}
			return nil
		},
	}

	listCmd.Flags().StringVar(&kindName, "kind", "", "destination to list (local, s3, azure, gcs); defaults to all configured")
	return listCmd
}

// createStorageTestCommand creates the storage test subcommand
func createStorageTestCommand() *cobra.Command {
	var kindName string

	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Test connectivity to each destination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			adapters, err := selectAdapters(env, kindName)
			if err != nil {
				return err
			}

			env.disp.Header("Storage connectivity")
			type outcome struct {
				Kind  string               `json:"kind"`
				OK    bool                 `json:"ok"`
				Error string               `json:"error,omitempty"`
				Info  *storage.StorageInfo `json:"info,omitempty"`
			}
			var (
				results []outcome
				failed  int
			)
			for _, adapter := range adapters {
				result := outcome{Kind: string(adapter.Kind())}
				if err := adapter.Connect(ctx); err != nil {
					result.Error = err.Error()
					failed++
				} else if info, err := adapter.GetStorageInfo(ctx); err != nil {
					result.Error = err.Error()
					failed++
				} else {
					result.OK = true
					result.Info = info
				}
				results = append(results, result)

				if result.OK {
					usage := display.FormatBytes(result.Info.Used) + " used"
					if result.Info.Total > 0 {
						usage += " of " + display.FormatBytes(result.Info.Total)
					}
					env.disp.Success(fmt.Sprintf("%s: reachable, %s", adapter.Name(), usage))
				} else {
					env.disp.Error(fmt.Sprintf("%s: %s", adapter.Name(), result.Error))
				}
			}

			if env.disp.Structured() {
				if err := env.disp.Emit(results); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d destinations failed", failed, len(adapters))
			}
			return nil
		},
	}

	testCmd.Flags().StringVar(&kindName, "kind", "", "destination to test; defaults to all configured")
	return testCmd
}

// createStorageURLCommand creates the storage url subcommand
func createStorageURLCommand() *cobra.Command {
	var (
		kindName string
		expiry   time.Duration
	)

	urlCmd := &cobra.Command{
		Use:   "url <name>",
		Short: "Mint a download URL for a stored container",
		Long: `Mint a download URL for a container on one destination.

For S3, Azure, and GCS the URL is presigned and expires; anyone holding
it can download the container until then. The local destination returns
a file:// URL.

Examples:
  sitevault storage url site-20260301-020000-full-1a2b3c4d.zip --kind s3 --expiry 1h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newAppEnv(false)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signalContext()
			defer stop()

			kind, err := resolveStorageKind(env, kindName)
			if err != nil {
				return err
			}
			adapter, err := env.registry.Get(kind)
			if err != nil {
				return err
			}
			if err := adapter.Connect(ctx); err != nil {
				return err
			}

			url, err := adapter.GetDownloadURL(ctx, args[0], expiry)
			if err != nil {
				return err
			}

			if env.disp.Structured() {
				return env.disp.Emit(map[string]interface{}{
					"kind":   string(kind),
					"name":   args[0],
					"url":    url,
					"expiry": expiry.String(),
				})
			}
			fmt.Fprintln(env.disp.Writer(), url)
			return nil
		},
	}

	urlCmd.Flags().StringVar(&kindName, "kind", "", "destination holding the container; defaults to the first configured destination")
	urlCmd.Flags().DurationVar(&expiry, "expiry", 15*time.Minute, "how long a presigned URL stays valid")
	return urlCmd
}

// selectAdapters returns the adapter for --kind, or every configured one.
func selectAdapters(env *appEnv, kindName string) ([]storage.Adapter, error) {
	if kindName == "" {
		adapters := env.registry.Configured()
		if len(adapters) == 0 {
			return nil, fmt.Errorf("no storage destinations configured")
		}
		return adapters, nil
	}
	kind, err := storage.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	adapter, err := env.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	return []storage.Adapter{adapter}, nil
}

// resolveStorageKind picks the destination for single-target operations.
func resolveStorageKind(env *appEnv, kindName string) (storage.Kind, error) {
	if kindName != "" {
		return storage.ParseKind(kindName)
	}
	if len(env.cfg.Storage.Destinations) > 0 {
		return storage.ParseKind(env.cfg.Storage.Destinations[0])
	}
	return storage.KindLocal, nil
}
