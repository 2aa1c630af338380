package registry

import (
	"errors"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

// ErrNoInstances is returned by Discover when no healthy instance is registered.
var ErrNoInstances = errors.New("no healthy instances found")

// ServiceRegistry registers board instances with a discovery backend and looks up peers.
type ServiceRegistry interface {
	// Register announces an instance. id must be unique per instance.
	Register(id, name, address string, port int, tags []string, check *consulapi.AgentServiceCheck) error

	Deregister(id string) error

	// Discover returns "host:port" of the healthy instances of name, optionally filtered by tag.
	Discover(name string, tag string) ([]string, error)
}

// Instance describes how this process announces itself.
type Instance struct {
	ID   string
	Name string
	Host string
	Port int
	Tags []string
}

const (
	checkInterval = "10s"
	checkTimeout  = "2s"
	// Instances failing their check this long are removed by the agent.
	deregisterAfter = "1m"
)

// RegisterHTTPInstance registers inst with an HTTP health check against healthPath.
func RegisterHTTPInstance(r ServiceRegistry, inst Instance, healthPath string) error {
	return r.Register(inst.ID, inst.Name, inst.Host, inst.Port, inst.Tags, httpCheck(inst, healthPath))
}

func httpCheck(inst Instance, healthPath string) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        inst.ID + "-health",
		Name:                           inst.Name + " health",
		HTTP:                           fmt.Sprintf("http://%s:%d%s", inst.Host, inst.Port, healthPath),
		Method:                         "GET",
		Interval:                       checkInterval,
		Timeout:                        checkTimeout,
		DeregisterCriticalServiceAfter: deregisterAfter,
	}
}
