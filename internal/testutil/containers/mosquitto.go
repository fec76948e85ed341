//go:build integration

package containers

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const mosquittoImage = "eclipse-mosquitto:2.0"

// mosquittoConf allows anonymous connections; fine for throwaway test
// brokers, never for anything else.
const mosquittoConf = `listener 1883
allow_anonymous true
`

// MosquittoContainer wraps a testcontainers Mosquitto broker.
type MosquittoContainer struct {
	container  testcontainers.Container
	brokerURL  string
	configFile string
}

// NewMosquittoContainer starts an anonymous-access Mosquitto broker and
// verifies it accepts connections before returning.
func NewMosquittoContainer(ctx context.Context) (*MosquittoContainer, error) {
	configFile, err := writeTempConfig()
	if err != nil {
		return nil, err
	}

	req := testcontainers.ContainerRequest{
		Image:        mosquittoImage,
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-test.conf"},
		Files: []testcontainers.ContainerFile{
			{
				HostFilePath:      configFile,
				ContainerFilePath: "/mosquitto-test.conf",
				FileMode:          0o644,
			},
		},
		WaitingFor: wait.ForLog("mosquitto version").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		_ = os.Remove(configFile)
		return nil, fmt.Errorf("failed to start mosquitto container: %w", err)
	}

	mc := &MosquittoContainer{container: container, configFile: configFile}

	host, err := container.Host(ctx)
	if err != nil {
		_ = mc.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "1883")
	if err != nil {
		_ = mc.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}
	mc.brokerURL = fmt.Sprintf("tcp://%s", net.JoinHostPort(host, strconv.Itoa(mappedPort.Int())))

	if err := mc.healthCheck(); err != nil {
		_ = mc.Terminate(context.Background())
		return nil, err
	}
	return mc, nil
}

// BrokerURL returns the broker address in tcp://host:port form.
func (c *MosquittoContainer) BrokerURL() string {
	return c.brokerURL
}

// Terminate stops the container and removes the temp config.
func (c *MosquittoContainer) Terminate(ctx context.Context) error {
	if c.configFile != "" {
		_ = os.Remove(c.configFile)
		c.configFile = ""
	}
	if c.container == nil {
		return nil
	}
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate mosquitto container: %w", err)
	}
	return nil
}

// healthCheck connects once to prove the listener is up.
func (c *MosquittoContainer) healthCheck() error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.brokerURL).
		SetClientID("containers-healthcheck").
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return fmt.Errorf("mosquitto health check timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mosquitto health check failed: %w", err)
	}
	client.Disconnect(250)
	return nil
}

func writeTempConfig() (string, error) {
	tmpFile, err := os.CreateTemp("", "mosquitto-*.conf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp config: %w", err)
	}
	if _, err := tmpFile.WriteString(mosquittoConf); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to close temp config: %w", err)
	}
	return tmpFile.Name(), nil
}
