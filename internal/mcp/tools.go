package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/neuropharmdb-server/internal/domain"
)

// CheckDrugPairParams defines parameters for the check_drug_pair tool
type CheckDrugPairParams struct {
	DrugA     string   `json:"drug_a" jsonschema:"first drug id"`
	DrugB     string   `json:"drug_b" jsonschema:"second drug id"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"severity at or above which the pair is high risk"`
}

// RecheckParams defines parameters for the recheck_active_drugs tool
type RecheckParams struct {
	MinSeverity *float64 `json:"min_severity,omitempty" jsonschema:"severity at or above which a pair alerts"`
}

// RecheckResult is the outcome of a bulk recheck
type RecheckResult struct {
	UserID        string `json:"user_id"`
	HighRiskPairs int    `json:"high_risk_pairs"`
}

// ListAlertsParams defines parameters for the list_alerts tool
type ListAlertsParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of alerts"`
}

// ListAlertsResult holds the user's recent alerts
type ListAlertsResult struct {
	Unread int                 `json:"unread"`
	Alerts []*domain.AlertView `json:"alerts"`
}

// PredictParams defines parameters for the predict_interaction tool
type PredictParams struct {
	DrugA  string `json:"drug_a" jsonschema:"first drug id"`
	DrugB  string `json:"drug_b" jsonschema:"second drug id"`
	Submit bool   `json:"submit,omitempty" jsonschema:"store the prediction as a suggestion for doctor review"`
}

// PredictResult is a prediction and, when submitted, its suggestion
type PredictResult struct {
	Prediction *domain.Prediction `json:"prediction"`
	Suggestion *domain.Suggestion `json:"suggestion,omitempty"`
}

// ExplainAlertParams defines parameters for the explain_alert tool
type ExplainAlertParams struct {
	AlertID string `json:"alert_id" jsonschema:"alert id"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "check_drug_pair",
		Description: "Classify the interaction risk of two drugs and raise an alert when high risk",
	}, s.handleCheckDrugPair)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "recheck_active_drugs",
		Description: "Re-evaluate every pair of the user's active drugs and report the high-risk pairs",
	}, s.handleRecheck)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_alerts",
		Description: "List the user's most recent interaction alerts with the unread count",
	}, s.handleListAlerts)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "predict_interaction",
		Description: "Predict the neurological effect of combining two drugs, optionally submitting it for review",
	}, s.handlePredict)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "explain_alert",
		Description: "Explain why an alert was raised",
	}, s.handleExplainAlert)

	s.logger.WithField("tool_count", 5).Debug("Registered MCP tools")
}

func (s *Server) handleCheckDrugPair(ctx context.Context, req *mcp.CallToolRequest, params CheckDrugPairParams) (*mcp.CallToolResult, any, error) {
	s.logTool("check_drug_pair")

	threshold := s.engine.Threshold()
	if params.Threshold != nil {
		threshold = *params.Threshold
	}
	res, err := s.engine.EvaluatePair(ctx, s.session.UserID, params.DrugA, params.DrugB, threshold)
	if err != nil {
		return s.createErrorResult("check_drug_pair", err), nil, nil
	}

	summary := fmt.Sprintf("%s + %s: %s", params.DrugA, params.DrugB, res.Status)
	if res.Interaction != nil {
		summary += fmt.Sprintf(" (%s, severity %.1f/10)", res.Interaction.EffectName, res.Interaction.SeverityScore)
	}
	if res.AlertCreated {
		summary += "; alert created"
	}
	return jsonResult(summary, res)
}

func (s *Server) handleRecheck(ctx context.Context, req *mcp.CallToolRequest, params RecheckParams) (*mcp.CallToolResult, any, error) {
	s.logTool("recheck_active_drugs")

	minSeverity := s.engine.Threshold()
	if params.MinSeverity != nil {
		minSeverity = *params.MinSeverity
	}
	high, err := s.engine.OnBulkRecheck(ctx, s.session.UserID, minSeverity)
	if err != nil {
		return s.createErrorResult("recheck_active_drugs", err), nil, nil
	}

	result := RecheckResult{UserID: s.session.UserID, HighRiskPairs: high}
	return jsonResult(fmt.Sprintf("%d high-risk pair(s) among active drugs", high), result)
}

func (s *Server) handleListAlerts(ctx context.Context, req *mcp.CallToolRequest, params ListAlertsParams) (*mcp.CallToolResult, any, error) {
	s.logTool("list_alerts")

	alerts, err := s.engine.ListAlerts(ctx, s.session.UserID, params.Limit)
	if err != nil {
		return s.createErrorResult("list_alerts", err), nil, nil
	}
	unread, err := s.engine.UnreadCount(ctx, s.session.UserID)
	if err != nil {
		return s.createErrorResult("list_alerts", err), nil, nil
	}

	result := ListAlertsResult{Unread: unread, Alerts: alerts}
	return jsonResult(fmt.Sprintf("%d alert(s), %d unread", len(alerts), unread), result)
}

func (s *Server) handlePredict(ctx context.Context, req *mcp.CallToolRequest, params PredictParams) (*mcp.CallToolResult, any, error) {
	s.logTool("predict_interaction")

	p, err := s.suggestions.Predict(ctx, params.DrugA, params.DrugB)
	if err != nil {
		return s.createErrorResult("predict_interaction", err), nil, nil
	}
	result := PredictResult{Prediction: p}
	summary := fmt.Sprintf("Predicted %s (severity %.1f/10, source %s)", p.Effect, p.Severity, p.Source)

	if params.Submit {
		sg, err := s.suggestions.Submit(ctx, s.session.UserID, params.DrugA, params.DrugB, p)
		if err != nil {
			return s.createErrorResult("predict_interaction", err), nil, nil
		}
		result.Suggestion = sg
		summary += fmt.Sprintf("; submitted as suggestion %d", sg.SuggestionID)
	}
	return jsonResult(summary, result)
}

func (s *Server) handleExplainAlert(ctx context.Context, req *mcp.CallToolRequest, params ExplainAlertParams) (*mcp.CallToolResult, any, error) {
	s.logTool("explain_alert")

	exp, err := s.engine.Explain(ctx, strings.TrimSpace(params.AlertID))
	if err != nil {
		return s.createErrorResult("explain_alert", err), nil, nil
	}
	if exp.Alert.UserID != s.session.UserID && !s.session.Role.CanReview() {
		// Foreign alerts look the same as missing ones
		return s.createErrorResult("explain_alert", fmt.Errorf("getting alert %s: %w", exp.Alert.AlertID, domain.ErrNotFound)), nil, nil
	}
	return jsonResult(fmt.Sprintf("Alert %s source: %s", exp.Alert.AlertID, exp.Source), exp)
}

func (s *Server) logTool(name string) {
	s.logger.WithFields(logrus.Fields{
		"tool":    name,
		"user_id": s.session.UserID,
	}).Info("Tool invoked")
}

// jsonResult returns a text summary followed by the JSON payload, with the
// payload also attached as structured output
func jsonResult(summary string, payload any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, payload, nil
}

// createErrorResult reports a domain failure to the client as a tool error
func (s *Server) createErrorResult(tool string, err error) *mcp.CallToolResult {
	code := domain.ErrorCode(err)
	s.logger.WithFields(logrus.Fields{
		"tool":  tool,
		"code":  code,
		"error": err,
	}).Warn("Tool failed")

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %v", code, err)},
		},
	}
}
