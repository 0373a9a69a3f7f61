package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/harrison-roh/crop-disease-classification/cropapp/api"
	"github.com/harrison-roh/crop-disease-classification/cropapp/config"
	"github.com/harrison-roh/crop-disease-classification/cropapp/data"
	"github.com/harrison-roh/crop-disease-classification/cropapp/data/db"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/h5model"
	"github.com/harrison-roh/crop-disease-classification/cropapp/inference/onnxmodel"
	"github.com/harrison-roh/crop-disease-classification/cropapp/logging"
	"github.com/harrison-roh/crop-disease-classification/cropapp/metrics"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Fatal().Err(err).Msg("Exit")
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	serve := newServeCmd(&configPath)
	root := &cobra.Command{
		Use:           "cropapp",
		Short:         "Crop disease classification and farmer registration server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")

	root.AddCommand(serve, newInspectCmd())
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the model and start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Print the detected format and saved contents of a model artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(inference.InspectWith(args[0], h5model.Inspect))
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func serve(ctx context.Context, cfg *config.Config) error {
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	defer onnxmodel.Destroy()

	modelPath, labelsPath, err := cfg.Model.ResolveArtifacts(config.ExecutableDir())
	if err != nil {
		return err
	}

	cl, err := inference.New(ctx, inference.Config{
		ModelPath:       modelPath,
		LabelsPath:      labelsPath,
		ModelConfigFile: cfg.Model.ConfigFile,
		ImageSize:       cfg.Model.ImageSize,
		TopK:            cfg.Model.TopK,
		Strategies:      loadStrategies(cfg),
		InspectHDF5:     h5model.Inspect,
	})
	if err != nil {
		return err
	}
	metrics.SetModelStrategy(cl.Info().Strategy)

	m, err := data.New(ctx, db.Config{
		Driver:        cfg.Store.Driver,
		MongoURI:      cfg.Store.MongoURI,
		MongoDatabase: cfg.Store.MongoDatabase,
		Collection:    cfg.Store.Collection,
		BadgerPath:    cfg.Store.BadgerPath,
		MySQLDSN:      cfg.Store.MySQLDSN,
		TableName:     cfg.Store.Table,
		Timeout:       cfg.Store.Timeout,
	})
	if err != nil {
		cl.Destroy()
		return err
	}
	// 종료 시 추론 모델 -> 저장소 순으로 해제
	defer func() {
		cl.Destroy()
		m.Destroy()
	}()

	gin.SetMode(cfg.Server.Mode)
	r := api.NewRouter(&api.APIs{
		I: cl,
		M: m,
	})

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		})(r),
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
