package catalog

var enUS = map[string]map[string]string{
	NamespaceErrors: {
		"SIM_SETTING_EMPTY":      "Setting {{.Setting}} has no roles in the role table.",
		"SIM_INVALID_CONFIG":     "The simulation configuration is invalid: {{.Reason}}.",
		"SIM_ROLE_TABLE_INVALID": "The role table could not be loaded: {{.Reason}}.",
		"SIM_FILTER_INVALID":     "The session filter is invalid: {{.Reason}}.",
		"SIM_CANCELLED":          "The simulation was cancelled after {{.Completed}} sessions.",
		"NOT_FOUND":              "The requested {{.Resource}} was not found.",
		"UNKNOWN":                "An unexpected error occurred.",
	},
	NamespaceCLI: {
		"cli.run.header":   "Setting %d: %d sessions x %d games (seed %s)",
		"cli.run.status":   "Status: %s (%d/%d sessions)",
		"cli.run.bonus":    "BIG total: %d, REG total: %d",
		"cli.run.summary":  "%s: mean %.1f, median %d, min %d, max %d",
		"cli.run.warning":  "Warning: role probabilities for setting %d sum to %.4f; the remainder resolves to the last role.",
		"cli.export.done":  "Wrote %d sessions to %s",
		"cli.field.invest": "Invested (yen)",
		"cli.field.final":  "Final coins",
		"cli.field.diff":   "Coin difference",
		"cli.field.profit": "Profit (yen)",
	},
}

var jaJP = map[string]map[string]string{
	NamespaceErrors: {
		"SIM_SETTING_EMPTY":      "設定{{.Setting}}の役が役テーブルにありません。",
		"SIM_INVALID_CONFIG":     "シミュレーション設定が不正です: {{.Reason}}",
		"SIM_ROLE_TABLE_INVALID": "役テーブルを読み込めません: {{.Reason}}",
		"SIM_FILTER_INVALID":     "セッションのフィルタが不正です: {{.Reason}}",
		"SIM_CANCELLED":          "{{.Completed}}セッション完了後にシミュレーションが中断されました。",
		"NOT_FOUND":              "指定された{{.Resource}}が見つかりません。",
		"UNKNOWN":                "予期しないエラーが発生しました。",
	},
	NamespaceCLI: {
		"cli.run.header":   "設定%d: %dセッション × %dゲーム (シード %s)",
		"cli.run.status":   "状態: %s (%d/%dセッション)",
		"cli.run.bonus":    "BIG合計: %d, REG合計: %d",
		"cli.run.summary":  "%s: 平均 %.1f, 中央値 %d, 最小 %d, 最大 %d",
		"cli.run.warning":  "警告: 設定%dの出現率の合計が%.4fです。残りは最後の役として扱われます。",
		"cli.export.done":  "%dセッションを%sに書き出しました",
		"cli.field.invest": "投資(円)",
		"cli.field.final":  "最終メダル",
		"cli.field.diff":   "差枚",
		"cli.field.profit": "収支(円)",
	},
}
