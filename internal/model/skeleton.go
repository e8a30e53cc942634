package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Segment is one body of a multibody chain.
type Segment struct {
	Name       string `yaml:"name"`
	Dof        int    `yaml:"dof"`
	Quaternion bool   `yaml:"quaternion"`
}

// Skeleton describes the generalized coordinates of a model. Quaternion
// segments own three rotational coordinates; their scalar parts are stored
// after all degrees of freedom, so the position vector has NbQ entries.
type Skeleton struct {
	Name     string    `yaml:"name"`
	Segments []Segment `yaml:"segments"`
}

func (s *Skeleton) NbSegment() int               { return len(s.Segments) }
func (s *Skeleton) SegmentDof(i int) int         { return s.Segments[i].Dof }
func (s *Skeleton) SegmentQuaternion(i int) bool { return s.Segments[i].Quaternion }

func (s *Skeleton) NbDof() int {
	n := 0
	for _, seg := range s.Segments {
		n += seg.Dof
	}
	return n
}

func (s *Skeleton) NbQuat() int {
	n := 0
	for _, seg := range s.Segments {
		if seg.Quaternion {
			n++
		}
	}
	return n
}

// NbQ is the number of generalized coordinates including quaternion scalars.
func (s *Skeleton) NbQ() int { return s.NbDof() + s.NbQuat() }

func (s *Skeleton) Validate() error {
	if len(s.Segments) == 0 {
		return fmt.Errorf("skeleton %q has no segments", s.Name)
	}
	for i, seg := range s.Segments {
		if seg.Dof < 0 {
			return fmt.Errorf("segment %d (%s): negative dof %d", i, seg.Name, seg.Dof)
		}
		if seg.Quaternion && seg.Dof != 3 {
			return fmt.Errorf("segment %d (%s): quaternion segments need 3 dof, got %d", i, seg.Name, seg.Dof)
		}
	}
	return nil
}

func ParseSkeleton(data []byte) (*Skeleton, error) {
	var s Skeleton
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse skeleton: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func LoadSkeleton(path string) (*Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skeleton: %w", err)
	}
	return ParseSkeleton(data)
}
