package models

import (
	"encoding/json"
	"testing"
)

func TestMoneyUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Money
		wantErr bool
	}{
		{name: "number", in: `12.5`, want: 12.5},
		{name: "string", in: `"150.00"`, want: 150},
		{name: "empty string", in: `""`, want: 0},
		{name: "null", in: `null`, want: 0},
		{name: "garbage string", in: `"abc"`, wantErr: true},
		{name: "bool", in: `true`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Money
			err := json.Unmarshal([]byte(tt.in), &m)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && m != tt.want {
				t.Errorf("got %v, want %v", m, tt.want)
			}
		})
	}
}

func TestProductDecodesStringPrice(t *testing.T) {
	var p Product
	body := `{"id":3,"name":"Nacatamal","price":"85.50","image_url":null,"category_id":2,"category_name":"Platos","is_active":true}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if p.Price != 85.5 {
		t.Errorf("price = %v, want 85.5", p.Price)
	}
	if p.ImageURL != nil {
		t.Errorf("image_url = %v, want nil", *p.ImageURL)
	}
}

func TestRole(t *testing.T) {
	if !RoleKitchen.Valid() {
		t.Error("kitchen should be valid")
	}
	if Role("chef").Valid() {
		t.Error("chef should not be valid")
	}
	var u *User
	if u.IsAdmin() {
		t.Error("nil user must not be admin")
	}
	if !(&User{Role: RoleAdmin}).IsAdmin() {
		t.Error("admin user not recognised")
	}
}
