package log

import "log/slog"

func PlanID[T ~string](id T) slog.Attr {
	return slog.String("plan_id", string(id))
}

func SubPlanID[T ~string](id T) slog.Attr {
	return slog.String("sub_plan_id", string(id))
}

func AgentID[T ~string](id T) slog.Attr {
	return slog.String("agent_id", string(id))
}

func NodeName(name string) slog.Attr {
	return slog.String("node_name", name)
}

func NodeIndex(index int) slog.Attr {
	return slog.Int("node_index", index)
}

func TaskName(name string) slog.Attr {
	return slog.String("task", name)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
