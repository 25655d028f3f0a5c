package models

import (
	"errors"
	"fmt"
)

// EventType 遥测事件类型
type EventType string

const (
	EventTripStart EventType = "TRIP_START"
	EventGPS       EventType = "GPS"
	EventFault     EventType = "DTC"
	EventTripEnd   EventType = "TRIP_END"
)

// ErrUnknownEventType 无法识别的事件类型
var ErrUnknownEventType = errors.New("unknown event type")

// ErrTripAlreadyOpen 车辆已有进行中的行程（仅 reject 策略下返回）
var ErrTripAlreadyOpen = errors.New("vehicle already has an open trip")

// ParseEventType 解析设备上报的事件类型
// 不做静默兜底：无法识别的类型直接报错
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "trip-start":
		return EventTripStart, nil
	case "gps":
		return EventGPS, nil
	case "fault":
		return EventFault, nil
	case "trip-end":
		return EventTripEnd, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
}
