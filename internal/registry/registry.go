// Package registry announces this instance to Consul so gateways and load
// balancers can find healthy chat nodes.
package registry

import (
	"fmt"
	"os"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// Agent is the slice of the Consul agent API the registry needs.
type Agent interface {
	ServiceRegister(reg *consulapi.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

type Registry struct {
	agent  Agent
	id     string
	name   string
	host   string
	port   int
	logger *zap.Logger
}

type Options struct {
	Addr        string
	ServiceName string
	Host        string
	Port        int
}

// New connects to the Consul agent at o.Addr. An empty address disables
// registration and New returns nil, nil.
func New(o Options, logger *zap.Logger) (*Registry, error) {
	if o.Addr == "" {
		return nil, nil
	}
	cfg := consulapi.DefaultConfig()
	cfg.Address = o.Addr
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithAgent(client.Agent(), o, logger), nil
}

func NewWithAgent(agent Agent, o Options, logger *zap.Logger) *Registry {
	host := o.Host
	if host == "" {
		host, _ = os.Hostname()
	}
	return &Registry{
		agent:  agent,
		id:     o.ServiceName + "-" + host + "-" + strconv.Itoa(o.Port),
		name:   o.ServiceName,
		host:   host,
		port:   o.Port,
		logger: logger,
	}
}

func (r *Registry) ID() string { return r.id }

// Register publishes the instance with an HTTP check against /healthz.
// Consul drops the instance if the check stays critical for a minute.
func (r *Registry) Register() error {
	reg := &consulapi.AgentServiceRegistration{
		ID:      r.id,
		Name:    r.name,
		Address: r.host,
		Port:    r.port,
		Tags:    []string{"http", "ws"},
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/healthz", r.host, r.port),
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := r.agent.ServiceRegister(reg); err != nil {
		return fmt.Errorf("consul register %s: %w", r.id, err)
	}
	r.logger.Info("registered with consul", zap.String("id", r.id))
	return nil
}

func (r *Registry) Deregister() error {
	if err := r.agent.ServiceDeregister(r.id); err != nil {
		return fmt.Errorf("consul deregister %s: %w", r.id, err)
	}
	r.logger.Info("deregistered from consul", zap.String("id", r.id))
	return nil
}
