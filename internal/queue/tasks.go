package queue

import (
	"encoding/json"
	"time"

	"github.com/benefit-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskBenefitCounterSync 商户有效权益数同步任务
	TaskBenefitCounterSync = constants.TaskBenefitCounterSync
	// TaskBenefitExpireSweep 权益过期/耗尽巡检任务
	TaskBenefitExpireSweep = constants.TaskBenefitExpireSweep
	// TaskBenefitCounterResync 全量计数重算任务
	TaskBenefitCounterResync = constants.TaskBenefitCounterResync
)

// CounterSyncPayload 计数同步任务载荷
type CounterSyncPayload struct {
	BusinessID uint   `json:"business_id"`
	Reason     string `json:"reason"`
}

// ExpireSweepPayload 巡检任务载荷，At 为空时按执行时刻判断
type ExpireSweepPayload struct {
	At *time.Time `json:"at,omitempty"`
}

// CounterResyncPayload 全量重算任务载荷
type CounterResyncPayload struct {
	Trigger string `json:"trigger"`
}

// NewCounterSyncTask 创建计数同步任务
func NewCounterSyncTask(payload CounterSyncPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBenefitCounterSync, body), nil
}

// NewExpireSweepTask 创建巡检任务
func NewExpireSweepTask(payload ExpireSweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBenefitExpireSweep, body), nil
}

// NewCounterResyncTask 创建全量重算任务
func NewCounterResyncTask(payload CounterResyncPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBenefitCounterResync, body), nil
}
