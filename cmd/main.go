package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cohort-bank/bank"
	"cohort-bank/config"
	"cohort-bank/console"
	"cohort-bank/customer"
	"cohort-bank/db"
	"cohort-bank/handlers"
	"cohort-bank/logger"
	"cohort-bank/models"
	"cohort-bank/repository"
	"cohort-bank/routers"
	"cohort-bank/transport"
)

var (
	cfgFile string
	apiURL  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cohort-bank",
		Short: "Cohort bank customer with coordinated checkpoints and rollback",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Enroll in a cohort and serve peers and the operator API",
		RunE:  runStart,
	}
	startCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Path to config file (default: config/config.yaml)")

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive prompt against a running customer",
		RunE:  runConsole,
	}
	consoleCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Path to config file, used to find the API address")
	consoleCmd.Flags().StringVar(&apiURL, "api", "", "Operator API base URL, overrides the config")

	rootCmd.AddCommand(startCmd, consoleCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	if cfg.Customer.Name == "" {
		return errors.New("customer.name is required")
	}

	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer logger.Logger.Sync()

	logger.Logger.Info("Starting customer...", zap.String("customer", cfg.Customer.Name))

	// Connect to LevelDB
	ldb, err := db.NewLevelDB(cfg.LevelDB.Path)
	if err != nil {
		logger.Logger.Error("Failed to open leveldb", zap.Error(err))
		return err
	}
	defer ldb.Close()

	// Initialize repository
	checkpointRepo := repository.NewCheckpointRepository(ldb)

	udp := transport.NewUDPClient(cfg.Network.Timeout)
	cust := customer.NewCustomer(checkpointRepo, udp, cfg.Network.Timeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Peers may start sending as soon as enrollment completes
	peerAddr := net.JoinHostPort(cfg.Network.IP, strconv.Itoa(cfg.Network.PeerPort))
	conn, err := net.ListenPacket("udp", peerAddr)
	if err != nil {
		logger.Logger.Error("Failed to listen for peers", zap.String("addr", peerAddr), zap.Error(err))
		return err
	}

	enrollment, coordinator, err := enroll(ctx, cfg, udp)
	if err != nil {
		conn.Close()
		return err
	}
	if err := cust.Enroll(enrollment); err != nil {
		conn.Close()
		return fmt.Errorf("enroll: %w", err)
	}

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, handlers.NewHandler(cust))

	// HTTP Server
	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Network.IP, strconv.Itoa(cfg.Network.Port)),
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Logger.Info("Listening for peers", zap.String("addr", peerAddr))
		return cust.Serve(gctx, conn)
	})
	g.Go(func() error {
		logger.Logger.Info("Server running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Logger.Info("Shutdown signal received, exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if coordinator != nil {
		exitCtx, cancel := context.WithTimeout(context.Background(), cfg.Network.Timeout)
		defer cancel()
		if exitErr := coordinator.Exit(exitCtx, cfg.Customer.Name); exitErr != nil {
			logger.Logger.Warn("Coordinator did not acknowledge exit", zap.Error(exitErr))
		}
	}
	return err
}

// enroll obtains the cohort from the coordinator when one is configured,
// otherwise from the static cohort in the config.
func enroll(ctx context.Context, cfg *config.Config, t transport.Requester) (models.Enrollment, *bank.Client, error) {
	if cfg.Bank.Address == "" {
		logger.Logger.Info("No coordinator configured, using static cohort", zap.Int("members", len(cfg.Cohort)))
		return cfg.StaticEnrollment(), nil, nil
	}
	coordinator := bank.NewClient(t, cfg.Bank.Address, cfg.Network.Timeout)
	if err := coordinator.Open(ctx, cfg.Self(), cfg.Customer.Balance); err != nil {
		return models.Enrollment{}, nil, fmt.Errorf("open account: %w", err)
	}
	e, err := coordinator.NewCohort(ctx, cfg.Customer.Name)
	if err != nil {
		return models.Enrollment{}, nil, fmt.Errorf("new cohort: %w", err)
	}
	return e, coordinator, nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	base := apiURL
	if base == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config load: %w", err)
		}
		base = "http://" + net.JoinHostPort(cfg.Network.IP, strconv.Itoa(cfg.Network.Port))
	}

	pterm.DefaultHeader.WithFullWidth().Println("cohort bank console")
	pterm.Info.Printfln("connected to %s, type help for commands", base)

	client := console.NewClient(base, time.Minute)
	return console.New(client, os.Stdin, os.Stdout).Run(cmd.Context())
}
