package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CardGetInput identifies the card instance to inspect.
type CardGetInput struct {
	InstanceID string `json:"instance_id" jsonschema:"card instance identifier"`
}

// CardGetResult summarizes a card instance for an assistant.
type CardGetResult struct {
	InstanceID  string              `json:"instance_id" jsonschema:"card instance identifier"`
	TemplateID  string              `json:"template_id" jsonschema:"card template identifier"`
	UserRef     string              `json:"user_ref" jsonschema:"card holder reference"`
	StampsGiven int                 `json:"stamps_given" jsonschema:"stamps collected so far"`
	StampTotal  int                 `json:"stamp_total" jsonschema:"stamps needed to complete the card"`
	Completed   bool                `json:"completed" jsonschema:"whether the card is full"`
	Unlocked    []RewardSummary     `json:"unlocked" jsonschema:"rewards unlocked and not yet redeemed"`
	Redemptions []RedemptionSummary `json:"redemptions" jsonschema:"past redemptions on this card"`
}

// RewardSummary is one reward attached to a stamp position.
type RewardSummary struct {
	ID      string `json:"id" jsonschema:"reward link identifier"`
	Name    string `json:"name" jsonschema:"reward name"`
	StampNo int    `json:"stamp_no" jsonschema:"stamp position that unlocks the reward"`
	Stock   *int64 `json:"stock,omitempty" jsonschema:"remaining stock (absent means unlimited)"`
}

// RedemptionSummary is one past redemption.
type RedemptionSummary struct {
	ID     string `json:"id" jsonschema:"redemption identifier"`
	LinkID string `json:"link_id" jsonschema:"redeemed reward link identifier"`
	Used   bool   `json:"used" jsonschema:"whether the redemption token was consumed"`
}

// RewardsListInput identifies the template whose rewards to list.
type RewardsListInput struct {
	TemplateID string `json:"template_id" jsonschema:"card template identifier"`
}

// RewardsListResult lists a template's configured rewards.
type RewardsListResult struct {
	Rewards []RewardSummary `json:"rewards" jsonschema:"rewards configured on the template"`
}

// TemplatesListInput bounds a template listing.
type TemplatesListInput struct {
	CompanyRef string `json:"company_ref,omitempty" jsonschema:"owning company reference"`
	Filter     string `json:"filter,omitempty" jsonschema:"AIP-160 filter expression, e.g. active = true"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum templates to return"`
}

// TemplateSummary is one card template.
type TemplateSummary struct {
	ID            string `json:"id" jsonschema:"template identifier"`
	CompanyRef    string `json:"company_ref" jsonschema:"owning company reference"`
	Title         string `json:"title" jsonschema:"template title"`
	StampTotal    int    `json:"stamp_total" jsonschema:"stamps needed to complete a card"`
	Active        bool   `json:"active" jsonschema:"whether new cards are being issued"`
	ConfigVersion int64  `json:"config_version" jsonschema:"current configuration version"`
}

// TemplatesListResult lists card templates.
type TemplatesListResult struct {
	Templates []TemplateSummary `json:"templates" jsonschema:"matching card templates"`
}

func registerTools(server *mcp.Server, client *Client) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "card_get",
		Description: "Get a loyalty card instance with its progress, unlocked rewards, and redemption history",
	}, cardGetHandler(client))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "rewards_list",
		Description: "List the rewards configured on a card template",
	}, rewardsListHandler(client))
	mcp.AddTool(server, &mcp.Tool{
		Name:        "templates_list",
		Description: "List card templates, optionally filtered by company or an AIP-160 expression",
	}, templatesListHandler(client))
}

func cardGetHandler(client *Client) mcp.ToolHandlerFor[CardGetInput, CardGetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CardGetInput) (*mcp.CallToolResult, CardGetResult, error) {
		if input.InstanceID == "" {
			return nil, CardGetResult{}, fmt.Errorf("instance_id is required")
		}
		card, err := client.getCard(ctx, input.InstanceID)
		if err != nil {
			return nil, CardGetResult{}, fmt.Errorf("card get failed: %w", err)
		}

		result := CardGetResult{
			InstanceID:  card.Instance.ID,
			TemplateID:  card.Instance.TemplateID,
			UserRef:     card.Instance.UserRef,
			StampsGiven: card.Instance.StampsGiven,
			StampTotal:  card.Instance.StampTotal,
			Completed:   card.Instance.CompletedAt != nil,
			Unlocked:    make([]RewardSummary, 0, len(card.Unlocked)),
			Redemptions: make([]RedemptionSummary, 0, len(card.Redemptions)),
		}
		for _, reward := range card.Unlocked {
			result.Unlocked = append(result.Unlocked, RewardSummary{
				ID:      reward.ID,
				Name:    reward.Name,
				StampNo: reward.StampNo,
				Stock:   reward.Stock,
			})
		}
		for _, redemption := range card.Redemptions {
			result.Redemptions = append(result.Redemptions, RedemptionSummary{
				ID:     redemption.ID,
				LinkID: redemption.LinkID,
				Used:   redemption.Used,
			})
		}
		return nil, result, nil
	}
}

func rewardsListHandler(client *Client) mcp.ToolHandlerFor[RewardsListInput, RewardsListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RewardsListInput) (*mcp.CallToolResult, RewardsListResult, error) {
		if input.TemplateID == "" {
			return nil, RewardsListResult{}, fmt.Errorf("template_id is required")
		}
		rewards, err := client.listRewards(ctx, input.TemplateID)
		if err != nil {
			return nil, RewardsListResult{}, fmt.Errorf("rewards list failed: %w", err)
		}

		result := RewardsListResult{Rewards: make([]RewardSummary, 0, len(rewards))}
		for _, reward := range rewards {
			result.Rewards = append(result.Rewards, RewardSummary{
				ID:      reward.ID,
				Name:    reward.Name,
				StampNo: reward.StampNo,
				Stock:   reward.Stock,
			})
		}
		return nil, result, nil
	}
}

func templatesListHandler(client *Client) mcp.ToolHandlerFor[TemplatesListInput, TemplatesListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TemplatesListInput) (*mcp.CallToolResult, TemplatesListResult, error) {
		templates, err := client.listTemplates(ctx, input.CompanyRef, input.Filter, input.Limit)
		if err != nil {
			return nil, TemplatesListResult{}, fmt.Errorf("templates list failed: %w", err)
		}

		result := TemplatesListResult{Templates: make([]TemplateSummary, 0, len(templates))}
		for _, template := range templates {
			result.Templates = append(result.Templates, TemplateSummary{
				ID:            template.ID,
				CompanyRef:    template.CompanyRef,
				Title:         template.Title,
				StampTotal:    template.StampTotal,
				Active:        template.Active,
				ConfigVersion: template.ConfigVersion,
			})
		}
		return nil, result, nil
	}
}
