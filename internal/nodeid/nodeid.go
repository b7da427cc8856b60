// Package nodeid derives a (datacenter, worker) pair for an instance that
// was not given one explicitly.
//
// Resolution order:
//
//  1. explicit IDs from configuration
//  2. POD_NAME (stable per replica in a StatefulSet)
//  3. HOSTNAME
//  4. os.Hostname()
//
// Names are hashed with xxhash onto one of the 1024 node slots. Hashing does
// not guarantee disjoint pairs; deployments with more than a handful of
// replicas should lease slots from Redis (internal/lease) instead.
package nodeid

import (
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/qianshe/snowflake"
)

// Source names where a Node came from.
type Source string

const (
	SourceConfig   Source = "config"
	SourcePodName  Source = "pod_name"
	SourceHostname Source = "hostname"
	SourceOS       Source = "os_hostname"
	SourceLease    Source = "lease"
)

// Node is a resolved node identity.
type Node struct {
	DatacenterID int64
	WorkerID     int64
	Slot         int64
	Source       Source
	Name         string // the hashed name, empty for config and lease
}

func (n Node) String() string {
	if n.Name == "" {
		return fmt.Sprintf("datacenter=%d worker=%d (%s)", n.DatacenterID, n.WorkerID, n.Source)
	}
	return fmt.Sprintf("datacenter=%d worker=%d (%s %q)", n.DatacenterID, n.WorkerID, n.Source, n.Name)
}

// ErrNoIdentity is returned when no source yields a name to hash.
var ErrNoIdentity = errors.New("nodeid: no identity source available")

// Resolver looks up identity sources. The zero value reads the process environment.
type Resolver struct {
	Lookup   func(key string) (string, bool)
	Hostname func() (string, error)
}

// Resolve returns the explicit pair when both IDs are non-negative, and
// otherwise hashes the first available name.
func (r Resolver) Resolve(workerID, datacenterID int64) (Node, error) {
	if workerID >= 0 && datacenterID >= 0 {
		if workerID > snowflake.MaxWorkerID || datacenterID > snowflake.MaxDatacenterID {
			return Node{}, fmt.Errorf("nodeid: explicit pair out of range: datacenter=%d worker=%d", datacenterID, workerID)
		}
		return Node{
			DatacenterID: datacenterID,
			WorkerID:     workerID,
			Slot:         datacenterID<<snowflake.WorkerIDBits | workerID,
			Source:       SourceConfig,
		}, nil
	}

	lookup := r.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, c := range []struct {
		key string
		src Source
	}{
		{"POD_NAME", SourcePodName},
		{"HOSTNAME", SourceHostname},
	} {
		if v, ok := lookup(c.key); ok && v != "" {
			return FromName(v, c.src), nil
		}
	}

	hostname := r.Hostname
	if hostname == nil {
		hostname = os.Hostname
	}
	if h, err := hostname(); err == nil && h != "" {
		return FromName(h, SourceOS), nil
	}
	return Node{}, ErrNoIdentity
}

// FromName hashes name onto a node slot.
func FromName(name string, src Source) Node {
	n := FromSlot(Slot(name), src)
	n.Name = name
	return n
}

// FromSlot maps a slot in [0, 1024) onto its pair. Slots outside the range wrap.
func FromSlot(slot int64, src Source) Node {
	slot &= snowflake.NodeCount - 1
	dc, worker, _ := snowflake.SlotPair(slot)
	return Node{DatacenterID: dc, WorkerID: worker, Slot: slot, Source: src}
}

// Slot returns the xxhash-derived slot for name.
func Slot(name string) int64 {
	return int64(xxhash.Sum64String(name) % snowflake.NodeCount)
}
