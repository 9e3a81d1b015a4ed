// Package schema provides relation graph analysis across resources
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// RelationshipGraph represents the dependency graph between resources.
// An edge A -> B means a field of A references B.
type RelationshipGraph struct {
	nodes map[string]*Resource
	edges map[string][]string
}

// NewRelationshipGraph creates a new relationship graph
func NewRelationshipGraph(schemas map[string]*Resource) *RelationshipGraph {
	graph := &RelationshipGraph{
		nodes: schemas,
		edges: make(map[string][]string),
	}

	for _, name := range sortedKeys(schemas) {
		seen := make(map[string]bool)
		rels := schemas[name].Relations()
		for _, path := range sortedKeys(rels) {
			target := rels[path].Resource
			// self references do not constrain creation order
			if target == name || seen[target] {
				continue
			}
			seen[target] = true
			graph.edges[name] = append(graph.edges[name], target)
		}
	}

	return graph
}

// DetectCycles detects circular references in the relation graph. Cycles are
// legal for REST resources but have no safe creation order.
func (g *RelationshipGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.edges[node] {
			if !visited[next] {
				dfs(next, path)
			} else if onStack[next] {
				for i, n := range path {
					if n == next {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		onStack[node] = false
	}

	for _, node := range sortedKeys(g.nodes) {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// TopologicalSort returns resources in dependency order (referenced resources first)
func (g *RelationshipGraph) TopologicalSort() ([]string, error) {
	outDegree := make(map[string]int)
	for node := range g.nodes {
		outDegree[node] = len(g.edges[node])
	}

	reverse := make(map[string][]string)
	for source, targets := range g.edges {
		for _, target := range targets {
			reverse[target] = append(reverse[target], source)
		}
	}

	var queue []string
	for _, node := range sortedKeys(g.nodes) {
		if outDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		dependents := reverse[node]
		sort.Strings(dependents)
		for _, dependent := range dependents {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		if cycles := g.DetectCycles(); len(cycles) > 0 {
			return nil, fmt.Errorf("circular dependency detected:\n%s", formatCycles(cycles))
		}
		return nil, fmt.Errorf("circular dependency detected")
	}

	return result, nil
}

// GetDependencies returns the direct dependencies of a resource
func (g *RelationshipGraph) GetDependencies(resource string) []string {
	deps, ok := g.edges[resource]
	if !ok {
		return []string{}
	}
	return deps
}

// GetDependents returns all resources that reference the given resource
func (g *RelationshipGraph) GetDependents(resource string) []string {
	dependents := []string{}
	for _, node := range sortedKeys(g.edges) {
		for _, dep := range g.edges[node] {
			if dep == resource {
				dependents = append(dependents, node)
				break
			}
		}
	}
	return dependents
}

func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  Cycle %d: %s -> %s", i+1, strings.Join(cycle, " -> "), cycle[0])
	}
	return b.String()
}

// RelationshipValidator checks that every relation points at a registered
// resource and, when a target field is named, at an existing field
type RelationshipValidator struct {
	schemas map[string]*Resource
}

// NewRelationshipValidator creates a new relationship validator
func NewRelationshipValidator(schemas map[string]*Resource) *RelationshipValidator {
	return &RelationshipValidator{schemas: schemas}
}

// Validate validates all relations
func (v *RelationshipValidator) Validate() error {
	var errs []*DefinitionError
	for _, name := range sortedKeys(v.schemas) {
		rels := v.schemas[name].Relations()
		for _, path := range sortedKeys(rels) {
			rel := rels[path]
			target, ok := v.schemas[rel.Resource]
			if !ok {
				errs = append(errs, &DefinitionError{
					Resource: name,
					Field:    path,
					Message:  fmt.Sprintf("references unknown resource %s", rel.Resource),
				})
				continue
			}
			if rel.Field != "" && rel.Field != "_id" && !target.HasField(rel.Field) {
				errs = append(errs, &DefinitionError{
					Resource: name,
					Field:    path,
					Message:  fmt.Sprintf("references unknown field %s.%s", rel.Resource, rel.Field),
				})
			}
		}
	}
	return joinDefinitionErrors(errs)
}
