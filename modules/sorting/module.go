// Package sorting provides a small family of array nodes — generate,
// bubble_pass, measure_disorder — useful for building sorting-visualization
// workflows and for exercising the ARRAY port type and the executor's
// array summarization in the event stream.
package sorting

import (
	"math/rand"

	"github.com/vk/burstflow/internal/registry"
)

type Module struct{}

func (m *Module) PluginID() string { return "core/sorting" }

func (m *Module) Register(reg *registry.PluginRegistrar) {
	reg.RegisterNode(registry.NodeSpec{
		Type:        "generate_array",
		Label:       "Generate Array",
		Category:    "input",
		Description: "Generates a random array of integers.",
		Doc:         "Creates an array of size random integers in [0, 10000). Use as the starting input for a sorting workflow.",
		PortsIn:     []registry.PortSpec{{Name: "size", Type: "NUMBER", HasDefault: true, Default: 1000.0}},
		PortsOut:    []registry.PortSpec{{Name: "array", Type: "ARRAY"}},
	}, generateArray)

	reg.RegisterNode(registry.NodeSpec{
		Type:        "bubble_pass",
		Label:       "Bubble Pass",
		Category:    "repair",
		Description: "One left-to-right pass of bubble sort.",
		Doc:         "Swaps adjacent out-of-order pairs in a single left-to-right sweep. A lightweight repair operator meant to run repeatedly inside a loop construct.",
		PortsIn:     []registry.PortSpec{{Name: "array", Type: "ARRAY"}},
		PortsOut:    []registry.PortSpec{{Name: "array", Type: "ARRAY"}},
	}, bubblePass)

	reg.RegisterNode(registry.NodeSpec{
		Type:        "measure_disorder",
		Label:       "Measure Disorder",
		Category:    "metric",
		Description: "Counts adjacent out-of-order pairs.",
		PortsIn:     []registry.PortSpec{{Name: "array", Type: "ARRAY"}},
		PortsOut:    []registry.PortSpec{{Name: "inversions", Type: "NUMBER"}},
	}, measureDisorder)
}

func generateArray(size float64) ([]int, error) {
	n := int(size)
	arr := make([]int, n)
	for i := range arr {
		arr[i] = rand.Intn(10000)
	}
	return arr, nil
}

func bubblePass(array []int) ([]int, error) {
	arr := make([]int, len(array))
	copy(arr, array)
	for i := 0; i < len(arr)-1; i++ {
		if arr[i] > arr[i+1] {
			arr[i], arr[i+1] = arr[i+1], arr[i]
		}
	}
	return arr, nil
}

func measureDisorder(array []int) (float64, error) {
	inversions := 0
	for i := 0; i < len(array)-1; i++ {
		if array[i] > array[i+1] {
			inversions++
		}
	}
	return float64(inversions), nil
}
