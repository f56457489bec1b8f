package volume

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// volHeader is the YAML sidecar describing a stored volume: its geometry
// plus the name of the raw sample file it accompanies.
type volHeader struct {
	Name       string      `yaml:"name,omitempty"`
	Dims       []int       `yaml:"dims"`
	VoxelSizes []float64   `yaml:"voxelSizes"`
	Transform  [][]float64 `yaml:"transform"`
	DataFile   string      `yaml:"dataFile"`
}

// Save writes the volume to disk as a YAML geometry header at path plus a
// raw little-endian float64 payload at path + ".raw".
func Save(vol *Volume, path string) error {
	t := vol.Transform()
	rows := make([][]float64, 4)
	for i := 0; i < 4; i++ {
		rows[i] = make([]float64, 4)
		for j := 0; j < 4; j++ {
			rows[i][j] = t.At(i, j)
		}
	}

	dataFile := filepath.Base(path) + ".raw"
	hdr := volHeader{
		Name:       vol.Name(),
		Dims:       vol.Dims(),
		VoxelSizes: vol.VoxSizes(),
		Transform:  rows,
		DataFile:   dataFile,
	}

	out, err := yaml.Marshal(&hdr)
	if err != nil {
		return fmt.Errorf("error marshaling volume header: %v", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("error writing volume header: %v", err)
	}

	raw, err := os.Create(filepath.Join(filepath.Dir(path), dataFile))
	if err != nil {
		return fmt.Errorf("error creating volume data file: %v", err)
	}
	defer raw.Close()

	if err := binary.Write(raw, binary.LittleEndian, vol.Data); err != nil {
		return fmt.Errorf("error writing volume data: %v", err)
	}
	return nil
}

// Load reads a volume previously written by Save, validating that the raw
// payload matches the geometry described in the header.
func Load(path string) (*Volume, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading volume header: %v", err)
	}

	var hdr volHeader
	if err := yaml.Unmarshal(text, &hdr); err != nil {
		return nil, fmt.Errorf("error parsing volume header: %v", err)
	}
	if len(hdr.Transform) != 4 {
		return nil, fmt.Errorf("volume header transform must have 4 rows, got %d", len(hdr.Transform))
	}

	values := make([]float64, 0, 16)
	for i, row := range hdr.Transform {
		if len(row) != 4 {
			return nil, fmt.Errorf("volume header transform row %d must have 4 entries, got %d", i, len(row))
		}
		values = append(values, row...)
	}

	grid, err := NewGrid(hdr.Dims, hdr.VoxelSizes, mat.NewDense(4, 4, values))
	if err != nil {
		return nil, fmt.Errorf("invalid volume geometry in %s: %v", path, err)
	}

	dataPath := filepath.Join(filepath.Dir(path), hdr.DataFile)
	raw, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("error opening volume data file: %v", err)
	}
	defer raw.Close()

	info, err := raw.Stat()
	if err != nil {
		return nil, fmt.Errorf("error inspecting volume data file: %v", err)
	}
	want := int64(grid.NumVoxels()) * 8
	if info.Size() != want {
		return nil, fmt.Errorf("volume data file %s holds %d bytes, expected %d", dataPath, info.Size(), want)
	}

	vol := NewVolume(grid)
	if err := binary.Read(raw, binary.LittleEndian, vol.Data); err != nil {
		return nil, fmt.Errorf("error reading volume data: %v", err)
	}
	vol.SetName(hdr.Name)
	return vol, nil
}
