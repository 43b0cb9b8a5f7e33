package partition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Environment variables consulted for the array slot, in priority order after
// explicitly bound flags.
const (
	EnvTaskID         = "ANNOBATCH_TASK_ID"
	EnvTaskCount      = "ANNOBATCH_TASK_COUNT"
	EnvSlurmTaskID    = "SLURM_ARRAY_TASK_ID"
	EnvSlurmTaskCount = "SLURM_ARRAY_TASK_COUNT"
)

// Array identifies one array task.
type Array struct {
	TaskID    int
	TaskCount int
}

// Single is the slot used when no array environment is present.
var Single = Array{TaskID: 0, TaskCount: 1}

// String formats the slot as "id/count".
func (a Array) String() string {
	return fmt.Sprintf("%d/%d", a.TaskID, a.TaskCount)
}

// BindEnv registers the array environment variables on v under the keys
// "task_id" and "task_count".
func BindEnv(v *viper.Viper) {
	_ = v.BindEnv("task_id", EnvTaskID, EnvSlurmTaskID)
	_ = v.BindEnv("task_count", EnvTaskCount, EnvSlurmTaskCount)
}

// ResolveArray reads task_id/task_count from v. Absence of both means
// single-worker mode. A task id without a count is only accepted for id 0.
func ResolveArray(v *viper.Viper) (Array, error) {
	BindEnv(v)

	idSet := isSet(v, "task_id")
	countSet := isSet(v, "task_count")
	if !idSet && !countSet {
		return Single, nil
	}

	arr := Single
	if idSet {
		id, err := parseInt(v.GetString("task_id"))
		if err != nil {
			return Array{}, fmt.Errorf("%w: task_id: %v", ErrInvalidTask, err)
		}
		arr.TaskID = id
	}
	if countSet {
		count, err := parseInt(v.GetString("task_count"))
		if err != nil {
			return Array{}, fmt.Errorf("%w: task_count: %v", ErrInvalidTask, err)
		}
		arr.TaskCount = count
	}
	if err := Validate(arr.TaskID, arr.TaskCount); err != nil {
		return Array{}, err
	}
	return arr, nil
}

// isSet treats an empty string (e.g. an exported but blank variable, or a flag
// left at its "-1" sentinel) as unset.
func isSet(v *viper.Viper, key string) bool {
	if !v.IsSet(key) {
		return false
	}
	s := strings.TrimSpace(v.GetString(key))
	return s != "" && s != "-1"
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
