package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/memory"
	"github.com/hasad-erp/hasad/pkg/server"
	"github.com/hasad-erp/hasad/pkg/server/endpoints"
	"github.com/hasad-erp/hasad/pkg/tasks"
)

func defaultBindAddress() string {
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		return addr
	}
	return "0.0.0.0"
}

func defaultPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8000"
}

func defaultPortInt() int {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			return p
		}
	}
	return 8000
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the Hasad application server",
	Long: `Run the Hasad application server.

To run the server requires the environment variables HASAD_DATA_KEY and
DATABASE_URL, unless --in-memory is given.

By default, database migrations are run on startup. Use --no-migrate to skip.`,
	Run: func(cmd *cobra.Command, args []string) {
		inMemory, _ := cmd.Flags().GetBool("in-memory")
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		host, _ := cmd.Flags().GetString("bind-address")
		port, _ := cmd.Flags().GetString("port")

		if err := runServer(host, port, inMemory, noMigrate); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("port", "p", defaultPort(), "server listen port")
	serverCmd.Flags().StringP("bind-address", "b", defaultBindAddress(), "server bind address")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
	serverCmd.Flags().Bool("in-memory", false, "keep all data in process memory instead of PostgreSQL")
}

func runServer(host, port string, inMemory, noMigrate bool) error {
	if !inMemory {
		if _, ok := os.LookupEnv("HASAD_DATA_KEY"); !ok {
			return fmt.Errorf("HASAD_DATA_KEY environment variable is required")
		}
		if os.Getenv("DATABASE_URL") == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
		if !noMigrate {
			log.Println("Running database migrations...")
			if err := runMigrations(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	queue := tasks.New(cfg.TaskWorkers, cfg.TaskQueueSize)

	ef, err := memory.EmbeddingFunc(cfg)
	if err != nil {
		return err
	}
	var index *memory.Index
	if ef != nil {
		if index, err = memory.NewIndex(ef); err != nil {
			return err
		}
	}

	a, err := newApp(cfg, appOptions{InMemory: inMemory, Queue: queue, Index: index})
	if err != nil {
		return err
	}
	defer a.Close()

	var kafka *audit.KafkaSink
	if len(cfg.AuditKafkaBrokers) > 0 {
		kafka = audit.NewKafkaSink(audit.NewKafkaWriter(cfg.AuditKafkaBrokers, cfg.AuditKafkaTopic), queue)
		audit.AddSink(kafka)
		log.Printf("Publishing audit events to %s on %v", cfg.AuditKafkaTopic, cfg.AuditKafkaBrokers)
	}

	if index != nil {
		svc := a.services.Memory
		_ = queue.Submit(tasks.Task{Name: "memory:rebuild-index", Priority: tasks.PriorityLow, Run: func(ctx context.Context) error {
			n, err := svc.RebuildIndex(ctx)
			if err != nil {
				return err
			}
			log.Printf("Indexed %d memories for semantic search", n)
			return nil
		}})
	}

	s := server.NewServer(cfg, a.services, host, port)
	endpoints.RegisterAll(s)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		err := config.Watch(ctx, func(next *config.HasadConfig) {
			for _, attr := range changedAttributes(cfg, next) {
				log.Printf("config: %s changed, restart the server to apply it", attr)
			}
		})
		if err != nil {
			log.Printf("config: not watching for changes: %v", err)
		}
	}()

	errs := make(chan error, 1)
	go func() {
		log.Printf("Running server at http://%s...\n", s.Addr())
		errs <- s.Start()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		log.Printf("Task queue shutdown: %v", err)
	}
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			log.Printf("Kafka sink close: %v", err)
		}
	}
	return nil
}

// changedAttributes names the attributes whose values differ between two
// configurations
func changedAttributes(prev, next *config.HasadConfig) []string {
	before := map[string]string{}
	for _, a := range prev.Attributes() {
		before[a.Name] = a.Value
	}
	var changed []string
	for _, a := range next.Attributes() {
		if before[a.Name] != a.Value {
			changed = append(changed, a.Name)
		}
	}
	return changed
}
