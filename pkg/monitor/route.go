package monitor

import (
	"sort"

	"github.com/tornado1014/openclaw-kakao/pkg/config"
	"github.com/tornado1014/openclaw-kakao/pkg/probe"
)

// ServiceStatus 是汇总视图里的一个服务条目。
type ServiceStatus struct {
	Name   string
	Status probe.Status
}

// RouteStatus 按投递链路聚合的状态。
// route 只是运维视角的分组：值班的人先看哪条链路断了，
// 再看链路里具体哪个服务挂了。
type RouteStatus struct {
	Route    string
	Degraded bool // 链路内存在失败或未知状态的服务
	Services []ServiceStatus
}

// SummarizeRoutes 把逐服务状态按配置的 route 分组汇总。
// statuses 里缺失的服务按 unknown 处理（比如 status 命令
// 读到的旧快照里还没有新加的服务）。
func SummarizeRoutes(cfg *config.Config, statuses map[string]probe.Status) []RouteStatus {
	byRoute := make(map[string]*RouteStatus)

	for _, svc := range cfg.Services {
		st, ok := statuses[svc.Name]
		if !ok {
			st = probe.StatusUnknown
		}

		route, exists := byRoute[svc.Route]
		if !exists {
			route = &RouteStatus{Route: svc.Route}
			byRoute[svc.Route] = route
		}
		route.Services = append(route.Services, ServiceStatus{Name: svc.Name, Status: st})
		if st == probe.StatusFail || st == probe.StatusUnknown {
			route.Degraded = true
		}
	}

	names := make([]string, 0, len(byRoute))
	for name := range byRoute {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]RouteStatus, 0, len(names))
	for _, name := range names {
		result = append(result, *byRoute[name])
	}
	return result
}
