package ynabsync

import (
	"fmt"
	"sort"

	"github.com/bcaldwell/cardsync/pkg/cardimporter"
	"github.com/davidsteinsland/ynab-go/ynab"
)

const balanceMultiplier = 1000.0

type Account struct {
	ID       string
	Name     string
	Type     string
	OnBudget bool
	Closed   bool
	Balance  float64
}

type Category struct {
	ID     string
	Name   string
	Group  string
	Hidden bool
}

// Lookup reads accounts and categories of one budget.
type Lookup struct {
	ynabClient *ynab.Client
	budgetID   string
}

func NewLookup(accessToken, budgetID string) *Lookup {
	return &Lookup{
		ynabClient: ynab.NewDefaultClient(accessToken),
		budgetID:   budgetID,
	}
}

func (l *Lookup) Accounts() ([]Account, error) {
	accounts, err := l.ynabClient.AccountsService.List(l.budgetID)
	if err != nil {
		return nil, fmt.Errorf("Error getting accounts: %s", err.Error())
	}

	result := make([]Account, 0, len(accounts))
	for _, account := range accounts {
		result = append(result, Account{
			ID:       account.Id,
			Name:     account.Name,
			Type:     account.Type,
			OnBudget: account.OnBudget,
			Closed:   account.Closed,
			Balance:  float64(account.Balance) / balanceMultiplier,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (l *Lookup) Categories() ([]Category, error) {
	categoryGroups, err := l.ynabClient.CategoriesService.List(l.budgetID)
	if err != nil {
		return nil, fmt.Errorf("Unable to get categories for budget %s: %s", l.budgetID, err.Error())
	}

	result := []Category{}
	for _, categoryGroup := range categoryGroups {
		if categoryGroup.Name == "Credit Card Payments" {
			continue
		}
		for _, c := range categoryGroup.Categories {
			result = append(result, Category{
				ID:     c.Id,
				Name:   c.Name,
				Group:  categoryGroup.Name,
				Hidden: c.Hidden,
			})
		}
	}

	return result, nil
}

// CategoryProblem is a category map entry that does not point at a usable
// category.
type CategoryProblem struct {
	CardName   string
	CategoryID string
	Reason     string
}

// VerifyCategoryMap checks every mapped id against the budget's categories.
func VerifyCategoryMap(m cardimporter.CategoryMap, categories []Category) []CategoryProblem {
	byID := make(map[string]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	problems := []CategoryProblem{}
	for cardName, id := range m {
		c, ok := byID[id]
		switch {
		case !ok:
			problems = append(problems, CategoryProblem{CardName: cardName, CategoryID: id, Reason: "unknown category"})
		case c.Hidden:
			problems = append(problems, CategoryProblem{CardName: cardName, CategoryID: id, Reason: "hidden category " + c.Name})
		}
	}

	sort.Slice(problems, func(i, j int) bool { return problems[i].CardName < problems[j].CardName })
	return problems
}

// AccountFor finds the open account a cardholder uploads into.
func AccountFor(holder cardimporter.Cardholder, accounts []Account) (Account, error) {
	if !cardimporter.IsUUID(holder.AccountID) {
		return Account{}, fmt.Errorf("cardholder %s account id %q is not a uuid", holder.Name, holder.AccountID)
	}

	for _, a := range accounts {
		if a.ID != holder.AccountID {
			continue
		}
		if a.Closed {
			return a, fmt.Errorf("cardholder %s account %s is closed", holder.Name, a.Name)
		}
		return a, nil
	}

	return Account{}, fmt.Errorf("cardholder %s account %s not found in budget", holder.Name, holder.AccountID)
}
