package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 车辆状态常量
const (
	StateParked  = "parked"
	StateDriving = "driving"
)

// 事件常量
const (
	EventTripStart = "trip_start"
	EventTripEnd   = "trip_end"
)

// VehicleState 车辆实时状态
// 由遥测事件派生的内存视图，不做持久化，真实状态以数据库为准
type VehicleState struct {
	VehicleID     string     `json:"vehicle_id"`
	Label         string     `json:"label"`
	CurrentState  string     `json:"state"`
	Since         time.Time  `json:"since"`
	LastLat       *float64   `json:"last_lat,omitempty"`
	LastLng       *float64   `json:"last_lng,omitempty"`
	LastAddress   *string    `json:"last_address,omitempty"`
	LastFaultCode *string    `json:"last_fault_code,omitempty"`
	LastFaultAt   *time.Time `json:"last_fault_at,omitempty"`
}

// Machine 单车状态机
type Machine struct {
	mu            sync.RWMutex
	vehicleID     string
	fsm           *fsm.FSM
	state         *VehicleState
	onStateChange func(vehicleID, from, to string)
}

// NewMachine 创建状态机
func NewMachine(vehicleID, initialState string, onStateChange func(vehicleID, from, to string)) *Machine {
	if initialState == "" {
		initialState = StateParked
	}

	m := &Machine{
		vehicleID:     vehicleID,
		onStateChange: onStateChange,
		state: &VehicleState{
			VehicleID:    vehicleID,
			CurrentState: initialState,
			Since:        time.Now(),
		},
	}

	m.fsm = fsm.NewFSM(
		initialState,
		fsm.Events{
			{Name: EventTripStart, Src: []string{StateParked}, Dst: StateDriving},
			{Name: EventTripEnd, Src: []string{StateDriving}, Dst: StateParked},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.vehicleID, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// GetState 获取完整状态
func (m *Machine) GetState() *VehicleState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// 返回副本
	stateCopy := *m.state
	stateCopy.CurrentState = m.fsm.Current()
	return &stateCopy
}

// UpdateState 更新状态数据
func (m *Machine) UpdateState(update func(s *VehicleState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	update(m.state)
}

// Trigger 触发事件
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.state.CurrentState = m.fsm.Current()
	m.state.Since = time.Now()
	return nil
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// Manager 状态机管理器
type Manager struct {
	mu       sync.RWMutex
	machines map[string]*Machine
	onChange func(vehicleID, from, to string)
}

// NewManager 创建管理器
func NewManager(onChange func(vehicleID, from, to string)) *Manager {
	return &Manager{
		machines: make(map[string]*Machine),
		onChange: onChange,
	}
}

// GetOrCreate 获取或创建状态机
func (m *Manager) GetOrCreate(vehicleID, initialState string) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[vehicleID]; ok {
		return machine
	}

	machine := NewMachine(vehicleID, initialState, m.onChange)
	m.machines[vehicleID] = machine
	return machine
}

// Get 获取状态机
func (m *Manager) Get(vehicleID string) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[vehicleID]
	return machine, ok
}

// GetAllStates 获取所有车辆状态
func (m *Manager) GetAllStates() map[string]*VehicleState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]*VehicleState)
	for vehicleID, machine := range m.machines {
		states[vehicleID] = machine.GetState()
	}
	return states
}
