// Package indextypes holds the layout of saved-object indices before
// saved-object types were split into per-domain indices (Kibana 8.8.0).
//
// An index without `_meta.indexTypesMap` was written by a release using this layout,
// so the table is needed to find out which types have to be relocated.
package indextypes

import (
	"github.com/opst/somigrate/pkg/savedobjects"
)

const (
	// MainIndex is the index where most saved-object types lived before 8.8.0.
	MainIndex = ".kibana"

	// TaskManagerIndex is the index dedicated to task manager documents.
	TaskManagerIndex = ".kibana_task_manager"

	// MultipleIndicesVersion is the first release which splits saved objects into multiple indices.
	MultipleIndicesVersion = "8.8.0"
)

// The table must not be modified. Accessors return copies.
var defaultIndexTypesMap = savedobjects.IndexTypesMap{
	TaskManagerIndex: {"task"},
	MainIndex: {
		"action",
		"action_task_params",
		"alert",
		"api_key_pending_invalidation",
		"apm-indices",
		"apm-server-schema",
		"apm-service-group",
		"apm-telemetry",
		"app_search_telemetry",
		"application_usage_daily",
		"application_usage_totals",
		"canvas-element",
		"canvas-workpad",
		"canvas-workpad-template",
		"cases",
		"cases-comments",
		"cases-configure",
		"cases-connector-mappings",
		"cases-telemetry",
		"cases-user-actions",
		"config",
		"config-global",
		"connector_token",
		"core-usage-stats",
		"csp-rule-template",
		"dashboard",
		"endpoint:user-artifact",
		"endpoint:user-artifact-manifest",
		"enterprise_search_telemetry",
		"epm-packages",
		"epm-packages-assets",
		"event_loop_delays_daily",
		"exception-list",
		"exception-list-agnostic",
		"file",
		"file-upload-usage-collection-telemetry",
		"fileShare",
		"fleet-fleet-server-host",
		"fleet-message-signing-keys",
		"fleet-preconfiguration-deletion-record",
		"fleet-proxy",
		"graph-workspace",
		"guided-onboarding-guide-state",
		"guided-onboarding-plugin-state",
		"index-pattern",
		"infrastructure-monitoring-log-view",
		"infrastructure-ui-source",
		"ingest-agent-policies",
		"ingest-download-sources",
		"ingest-outputs",
		"ingest-package-policies",
		"ingest_manager_settings",
		"inventory-view",
		"kql-telemetry",
		"legacy-url-alias",
		"lens",
		"lens-ui-telemetry",
		"map",
		"metrics-explorer-view",
		"ml-job",
		"ml-module",
		"ml-trained-model",
		"monitoring-telemetry",
		"osquery-manager-usage-metric",
		"osquery-pack",
		"osquery-pack-asset",
		"osquery-saved-query",
		"query",
		"rules-settings",
		"sample-data-telemetry",
		"search",
		"search-session",
		"search-telemetry",
		"security-rule",
		"security-solution-signals-migration",
		"siem-detection-engine-rule-actions",
		"siem-ui-timeline",
		"siem-ui-timeline-note",
		"siem-ui-timeline-pinned-event",
		"slo",
		"space",
		"spaces-usage-stats",
		"synthetics-monitor",
		"synthetics-param",
		"synthetics-privates-locations",
		"tag",
		"telemetry",
		"ui-metric",
		"upgrade-assistant-ml-upgrade-operation",
		"upgrade-assistant-reindex-operation",
		"uptime-dynamic-settings",
		"uptime-synthetics-api-key",
		"url",
		"usage-counters",
		"visualization",
		"workplace_search_telemetry",
	},
}

// legacy index of each type. built once from defaultIndexTypesMap.
var legacyIndexOf = func() map[savedobjects.Type]string {
	m := map[savedobjects.Type]string{}
	for index, ts := range defaultIndexTypesMap {
		for _, t := range ts {
			m[t] = index
		}
	}
	return m
}()

// Default returns a copy of the index layout used before MultipleIndicesVersion.
func Default() savedobjects.IndexTypesMap {
	return defaultIndexTypesMap.Clone()
}

// LegacyIndexOf returns the index where the type lived before MultipleIndicesVersion.
//
// Types introduced after that return ("", false).
func LegacyIndexOf(t savedobjects.Type) (string, bool) {
	index, ok := legacyIndexOf[t]
	return index, ok
}

// TypesIn returns the types which lived in the index before MultipleIndicesVersion.
func TypesIn(index string) ([]savedobjects.Type, bool) {
	return defaultIndexTypesMap.TypesIn(index)
}
