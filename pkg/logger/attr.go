package logger

import (
	"fmt"
	"log/slog"
)

// Error records err under "error". Nil errors produce an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TenantID records the tenant identifier. Nil and zero values produce an empty Attr.
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	if s, ok := id.(fmt.Stringer); ok {
		v := s.String()
		if v == "" || v == "00000000-0000-0000-0000-000000000000" {
			return slog.Attr{}
		}
		return slog.String("tenant_id", v)
	}
	return slog.Any("tenant_id", id)
}

func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}

// Actor records who triggered an operation.
func Actor(actor string) slog.Attr {
	if actor == "" {
		return slog.Attr{}
	}
	return slog.String("actor", actor)
}

// Tier records a plan tier such as "C2".
func Tier(tier string) slog.Attr {
	return slog.String("tier", tier)
}

func Status(status string) slog.Attr {
	return slog.String("status", status)
}

// Scope records the route scope assigned by the classifier.
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component names the subsystem emitting the record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Group creates a slog group attribute.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}
