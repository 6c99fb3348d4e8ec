package report

// User facing strings. Reports are rendered in Vietnamese.
const (
	titleMonthly  = "📊 BÁO CÁO TÀI CHÍNH"
	titleAnalysis = "🔍 PHÂN TÍCH CHI TIÊU"
	titleForecast = "🔮 DỰ BÁO CHI TIÊU"
	titleAlerts   = "🔔 CẢNH BÁO TÀI CHÍNH"

	labelPeriod        = "Kỳ báo cáo"
	labelIncome        = "💰 Tổng thu nhập"
	labelExpense       = "💸 Tổng chi tiêu"
	labelBalance       = "📈 Số dư"
	labelWalletBalance = "👛 Tổng số dư ví"
	labelWalletCount   = "🏦 Số ví"
	labelTransactions  = "🧾 Số giao dịch"
	labelIncomeChange  = "Thu nhập so với kỳ trước"
	labelExpenseChange = "Chi tiêu so với kỳ trước"
	labelTopCategories = "🏷️ Top danh mục chi tiêu:"
	labelUnnamed       = "Không tên"

	// MsgNoCategoryData is emitted in place of an empty category ranking.
	MsgNoCategoryData = "Không có dữ liệu danh mục chi tiêu."
	// MsgInsufficientData is returned by Forecast when no projection is possible.
	MsgInsufficientData = "Không đủ dữ liệu để dự báo chi tiêu."
	// MsgNoAlerts is emitted by AlertsFallback when no condition holds.
	MsgNoAlerts = "✅ Không có cảnh báo nào trong kỳ này."
)
