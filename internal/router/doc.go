// Package router exposes the routing core over gRPC. The Router service
// returns, for a request key, the ordered list of delivery nodes to try;
// clients walk that list in order when a node fails.
//
// Messages are google.protobuf.Struct values so the service needs no
// generated code:
//
//	Route      {key, dispersion: {limit, shuffled} | dispersion_json} -> {version, nodes: [{id, addr, weight}]}
//	GetRing    {key?}                                                 -> {version, points, nodes, owner?}
//	SetWeight  {id, weight}                                           -> {version}
//	AddNode    {id, addr, weight}                                     -> {version}
//	RemoveNode {id}                                                   -> {version}
package router
