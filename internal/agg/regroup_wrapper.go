package agg

import (
	"regexp"

	"github.com/oriser/regroup"
)

// ReGroup wraps regroup.ReGroup to add YAML marshalling from and to a (regex) string
type ReGroup struct {
	*regroup.ReGroup
	original   string
	groupNames []string
}

func NewReGroup(original string) ReGroup {
	r := ReGroup{}
	if err := r.compile(original); err != nil {
		panic(err)
	}
	return r
}

func (r *ReGroup) UnmarshalYAML(unmarshal func(any) error) error {
	var original string
	if err := unmarshal(&original); err != nil {
		return err
	}
	return r.compile(original)
}

func (r ReGroup) MarshalYAML() (interface{}, error) {
	if r.ReGroup == nil {
		return "", nil
	}
	return r.original, nil
}

func (r ReGroup) String() string {
	return r.original
}

// GroupNames returns the names of the named capture groups
func (r ReGroup) GroupNames() []string {
	return r.groupNames
}

func (r *ReGroup) compile(original string) error {
	reGroup, err := regroup.Compile(original)
	if err != nil {
		return err
	}
	re, err := regexp.Compile(original)
	if err != nil {
		return err
	}
	r.ReGroup = reGroup
	r.original = original
	r.groupNames = nil
	for _, name := range re.SubexpNames() {
		if name != "" {
			r.groupNames = append(r.groupNames, name)
		}
	}
	return nil
}
