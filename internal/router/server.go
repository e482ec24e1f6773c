package router

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"cdnrouter/internal/dispersion"
	"cdnrouter/internal/pool"
	"cdnrouter/internal/ring"
)

// Server implements the Router gRPC service on top of a pool.
type Server struct {
	pool     *pool.Pool
	defaults dispersion.Dispersion
	metrics  *Metrics
	log      *logrus.Entry
}

// NewServer creates a Router service. defaults applies to requests that carry
// no dispersion.
func NewServer(p *pool.Pool, defaults dispersion.Dispersion, metrics *Metrics, logger *logrus.Logger) *Server {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		pool:     p,
		defaults: defaults,
		metrics:  metrics,
		log:      logger.WithField("component", "router"),
	}
}

// Route handles Route requests.
func (s *Server) Route(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	// An absent key routes like the empty string.
	key := req.GetFields()["key"].GetStringValue()
	d := s.requestDispersion(req)

	// One snapshot for the whole lookup.
	snap := s.pool.Snapshot()
	selected, err := snap.Select(d, key)
	if err != nil {
		if errors.Is(err, ring.ErrEmptyPool) {
			s.metrics.Errors.WithLabelValues("empty_pool").Inc()
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		s.metrics.Errors.WithLabelValues("internal").Inc()
		return nil, status.Errorf(codes.Internal, "selecting nodes: %v", err)
	}
	s.metrics.Selections.WithLabelValues(selected[0].ID).Inc()

	s.log.WithFields(logrus.Fields{
		"key":        key,
		"dispersion": d.String(),
		"primary":    selected[0].ID,
		"version":    snap.Version,
	}).Debug("Route request")

	nodes := make([]any, 0, len(selected))
	for _, m := range selected {
		nodes = append(nodes, memberValue(m))
	}
	return newStruct(map[string]any{
		"version": float64(snap.Version),
		"nodes":   nodes,
	})
}

// requestDispersion reads the request's dispersion. Malformed values fall
// back to the default rather than failing the request.
func (s *Server) requestDispersion(req *structpb.Struct) dispersion.Dispersion {
	var raw []byte
	if v, ok := req.GetFields()["dispersion"]; ok {
		b, err := protojson.Marshal(v)
		if err != nil {
			s.malformed(err)
			return dispersion.Default()
		}
		raw = b
	} else if v, ok := req.GetFields()["dispersion_json"]; ok {
		raw = []byte(v.GetStringValue())
	} else {
		return s.defaults
	}

	d, err := dispersion.ParseOrDefault(raw)
	if err != nil {
		s.malformed(err)
	}
	return d
}

func (s *Server) malformed(err error) {
	s.metrics.Errors.WithLabelValues("malformed_dispersion").Inc()
	s.log.WithError(err).Warn("Malformed dispersion, using default")
}

// GetRing returns ring information, and the owner of key if one is given (debug endpoint).
func (s *Server) GetRing(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	snap := s.pool.Snapshot()

	members := snap.Members()
	nodes := make([]any, 0, len(members))
	for _, m := range members {
		nodes = append(nodes, memberValue(m))
	}

	resp := map[string]any{
		"version": float64(snap.Version),
		"points":  float64(snap.Ring.Len()),
		"nodes":   nodes,
	}
	if key := req.GetFields()["key"].GetStringValue(); key != "" {
		resp["owner"] = snap.Ring.Owner(key)
	}
	return newStruct(resp)
}

// SetWeight handles capacity updates for a single node.
func (s *Server) SetWeight(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id cannot be empty")
	}
	weight := req.GetFields()["weight"].GetNumberValue()

	err := s.pool.SetWeight(id, weight)
	var invalid *ring.InvalidWeightError
	switch {
	case err == nil:
	case errors.Is(err, pool.ErrUnknownNode):
		return nil, status.Error(codes.NotFound, err.Error())
	case errors.As(err, &invalid):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	default:
		return nil, status.Errorf(codes.Internal, "updating weight: %v", err)
	}

	s.log.WithFields(logrus.Fields{"node": id, "weight": weight}).Info("Weight updated")
	return newStruct(map[string]any{
		"version": float64(s.pool.Snapshot().Version),
	})
}

// AddNode adds a node to the pool, or replaces the address and weight of an
// existing one.
func (s *Server) AddNode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	m := pool.Member{
		ID:     f["id"].GetStringValue(),
		Addr:   f["addr"].GetStringValue(),
		Weight: f["weight"].GetNumberValue(),
	}
	if m.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id cannot be empty")
	}
	if m.Addr == "" {
		return nil, status.Error(codes.InvalidArgument, "addr cannot be empty")
	}

	err := s.pool.Upsert(m)
	var invalid *ring.InvalidWeightError
	switch {
	case err == nil:
	case errors.As(err, &invalid):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	default:
		return nil, status.Errorf(codes.Internal, "adding node: %v", err)
	}

	s.log.WithFields(logrus.Fields{"node": m.ID, "addr": m.Addr, "weight": m.Weight}).Info("Node added")
	return newStruct(map[string]any{
		"version": float64(s.pool.Snapshot().Version),
	})
}

// RemoveNode drops a node from the pool.
func (s *Server) RemoveNode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id cannot be empty")
	}

	removed, err := s.pool.Remove(id)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "removing node: %v", err)
	}
	if !removed {
		return nil, status.Errorf(codes.NotFound, "%v: %s", pool.ErrUnknownNode, id)
	}

	s.log.WithField("node", id).Info("Node removed")
	return newStruct(map[string]any{
		"version": float64(s.pool.Snapshot().Version),
	})
}

func memberValue(m pool.Member) map[string]any {
	return map[string]any{
		"id":     m.ID,
		"addr":   m.Addr,
		"weight": m.Weight,
	}
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return st, nil
}
