// Package authz decide quem pode fazer o quê. A identidade chega pronta da
// camada de autenticação; aqui só se cruza papel com capacidade.
package authz

import (
	"fmt"
	"strings"
)

type Capability string

const (
	PlaceBid        Capability = "place_bid"
	ViewWallet      Capability = "view_wallet"
	DeclareResult   Capability = "declare_result"
	RevokeResult    Capability = "revoke_result"
	ReprocessResult Capability = "reprocess_result"
	ManageMarkets   Capability = "manage_markets"
	ApproveFunds    Capability = "approve_funds"
	RefundMarket    Capability = "refund_market"
)

type Role string

const (
	RolePlayer   Role = "player"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Principal é quem está chamando.
type Principal struct {
	ID   string
	Role Role
}

// Authorizer responde se o principal tem a capacidade.
type Authorizer interface {
	Can(p Principal, c Capability) bool
}

// RoleSet é o Authorizer estático por papel.
type RoleSet map[Role]map[Capability]bool

func set(cs ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(cs))
	for _, c := range cs {
		m[c] = true
	}
	return m
}

// DefaultRoles: jogador aposta e vê a carteira; operador declara e aprova
// fundos; admin faz tudo, inclusive revogar e reembolsar.
func DefaultRoles() RoleSet {
	return RoleSet{
		RolePlayer:   set(PlaceBid, ViewWallet),
		RoleOperator: set(ViewWallet, DeclareResult, ApproveFunds),
		RoleAdmin: set(PlaceBid, ViewWallet, DeclareResult, RevokeResult,
			ReprocessResult, ManageMarkets, ApproveFunds, RefundMarket),
	}
}

func (rs RoleSet) Can(p Principal, c Capability) bool {
	return rs[p.Role][c]
}

// ParseRole aceita o valor do header de identidade.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePlayer, RoleOperator, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
