// Command healthprobe queries the service's gRPC health endpoint and exits
// non-zero unless it reports SERVING. Suitable as a container health check.
package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr    string
		service string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:          "healthprobe",
		Short:        "Check the gRPC health status of the transcript insights service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := probe(ctx, addr, service)
			if err != nil {
				log.Error().Err(err).Str("addr", addr).Msg("Health check failed")
				return err
			}
			log.Info().Str("addr", addr).Str("service", service).Str("status", status.String()).Msg("Health check")
			if status != grpc_health_v1.HealthCheckResponse_SERVING {
				return errors.Errorf("service %q is %s", service, status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:50051", "gRPC address")
	cmd.Flags().StringVar(&service, "service", "", "health service name (empty for the whole server)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "probe timeout")
	return cmd
}

func probe(ctx context.Context, addr, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, errors.Wrap(err, "connect")
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, errors.Wrap(err, "check")
	}
	return resp.GetStatus(), nil
}
