// Package mail composes unsent report drafts: recipients, a subject for
// the billing month, the report attachments and an HTML note placed above
// the operator's signature.
package mail

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownTemplate is returned for a customer with no mail template
	ErrUnknownTemplate = errors.New("no mail template for customer")

	// ErrNoAttachments is returned when a draft has nothing attached
	ErrNoAttachments = errors.New("no attachments selected")
)

const defaultBody = `<div style="font-family:'맑은 고딕'; font-size:10pt;">
    mail content
</div>
`

// Template is the per-customer part of a draft. Subject and Attachment
// accept the billing month tokens {YYYY} {YY} {MM} {M} {LABEL} {TODAY}.
type Template struct {
	Customer string
	Subject  string
	Body     string
	// Attachment is the report name suggested when picking the attachment
	Attachment string
}

// Templates looks up templates by customer
type Templates map[string]Template

// Lookup returns the template for customer
func (t Templates) Lookup(customer string) (Template, error) {
	tpl, ok := t[customer]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, customer)
	}
	return tpl, nil
}

// Customers lists the customers with templates, sorted
func (t Templates) Customers() []string {
	out := make([]string, 0, len(t))
	for c := range t {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// DefaultTemplates returns the built-in subjects
func DefaultTemplates() Templates {
	subjects := map[string]string{
		"CustomerA": "[CustomerA] {YY}년 {MM}월 Azure 사용량 송부 건",
		"CustomerB": "[CustomerB] {MM}월 비용보고서&점검 보고서 전달드립니다",
		"CustomerC": "[CustomerC/D] {YY}.{MM}월 빌링 안내",
		"CustomerD": "[CustomerC/D] {YY}.{MM}월 빌링 안내",
		"CustomerE": "[CustomerE] {YY}년 {MM}월 사용량 보고서",
		"CustomerF": "[CustomerF] {YY}년 {MM}월 Azure 사용량 송부의 건",
		"CustomerG": "[CustomerG] Azure {YY}년 {MM}월 사용량 파일 전달",
		"CustomerH": "[CustomerH] Azure {YY}년 {MM}월 한달 사용비용",
		"CustomerI": "[CustomerI] {YY}.{MM} Microsoft Azure 사용량",
		"CustomerJ": "[Azure 청구 금액] CustomerJ {YY}년 {MM}월",
		"CustomerK": "[CustomerK] {YY}년 {MM}월 사용 비용",
		"CustomerL": "[CustomerL] {MM}월 비용보고서 전달드립니다.",
		"CustomerM": "[CustomerM] {MM}월 비용보고서 전달드립니다.",
	}

	t := make(Templates, len(subjects))
	for customer, subject := range subjects {
		t[customer] = Template{
			Customer:   customer,
			Subject:    subject,
			Body:       defaultBody,
			Attachment: customer + " {YYYY}년 {MM}월 Azure 사용량.xlsx",
		}
	}
	return t
}
