package domain

import "testing"

func TestCartItem_UID(t *testing.T) {
	with := &CartItem{Product: Product{Permalink: "course"}, OptionID: "ebook"}
	if with.UID() != "course ebook" {
		t.Fatalf("unexpected uid %q", with.UID())
	}
	without := &CartItem{Product: Product{Permalink: "course"}}
	if without.UID() != "course " {
		t.Fatalf("option-less uid must keep the trailing space, got %q", without.UID())
	}
}

func TestCart_FindItemIsExact(t *testing.T) {
	cart := &Cart{Items: []*CartItem{
		{Product: Product{Permalink: "course"}, OptionID: "ebook"},
		{Product: Product{Permalink: "course"}},
	}}
	if got := cart.FindItem("course", "ebook"); got != cart.Items[0] {
		t.Fatalf("expected the optioned item, got %+v", got)
	}
	if got := cart.FindItem("course", ""); got != cart.Items[1] {
		t.Fatalf("expected the option-less item, got %+v", got)
	}
	if cart.FindItem("course", "video") != nil {
		t.Fatalf("no fuzzy matching")
	}
}

func TestCart_RemoveItem(t *testing.T) {
	cart := &Cart{Items: []*CartItem{
		{Product: Product{Permalink: "a"}},
		{Product: Product{Permalink: "b"}},
		{Product: Product{Permalink: "c"}},
	}}
	if !cart.RemoveItem(ItemKey{Permalink: "b"}) {
		t.Fatalf("remove failed")
	}
	if len(cart.Items) != 2 || cart.Items[0].Product.Permalink != "a" || cart.Items[1].Product.Permalink != "c" {
		t.Fatalf("order must be preserved, got %+v", cart.Items)
	}
	if cart.RemoveItem(ItemKey{Permalink: "b"}) {
		t.Fatalf("removing a missing key must report false")
	}
}

func TestCart_RequiresShipping(t *testing.T) {
	cart := &Cart{Items: []*CartItem{
		{Product: Product{Permalink: "ebook"}},
	}}
	if cart.RequiresShipping() {
		t.Fatalf("digital-only cart needs no shipping")
	}
	cart.Items = append(cart.Items, &CartItem{Product: Product{Permalink: "print", RequiresShipping: true}})
	if !cart.RequiresShipping() {
		t.Fatalf("one physical item flips the cart")
	}
}
