package scanner

import "github.com/michaelpento.lv/arbbot/types"

// Routes returns every closed route that leaves base, visits distinct
// watched assets and returns to base, with a leg count in [minLegs, maxLegs].
// Shorter routes come first. Within one length, asset sets follow watch list
// order and each set is listed in every visiting order.
func Routes(base types.Asset, watch []types.Asset, minLegs, maxLegs int) []types.Route {
	assets := watchAssets(base, watch)
	if minLegs < types.MinRouteLegs {
		minLegs = types.MinRouteLegs
	}

	var routes []types.Route
	for legs := minLegs; legs <= maxLegs && legs-1 <= len(assets); legs++ {
		combinations(len(assets), legs-1, func(set []int) {
			permutations(set, func(order []int) {
				r := make(types.Route, 0, legs+1)
				r = append(r, base)
				for _, i := range order {
					r = append(r, assets[i])
				}
				routes = append(routes, append(r, base))
			})
		})
	}
	return routes
}

// watchAssets drops blanks, the base asset and duplicates, keeping order
func watchAssets(base types.Asset, watch []types.Asset) []types.Asset {
	seen := make(map[types.Asset]struct{}, len(watch))
	assets := make([]types.Asset, 0, len(watch))
	for _, a := range watch {
		if a == "" || a == base {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		assets = append(assets, a)
	}
	return assets
}

// combinations calls fn with every ascending k-subset of [0, n) in
// lexicographic order. fn must not keep the slice.
func combinations(n, k int, fn func([]int)) {
	if k <= 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// permutations calls fn with every ordering of the ascending slice set in
// lexicographic order. fn must not keep the slice.
func permutations(set []int, fn func([]int)) {
	p := append([]int(nil), set...)
	for {
		fn(p)
		i := len(p) - 2
		for i >= 0 && p[i] >= p[i+1] {
			i--
		}
		if i < 0 {
			return
		}
		j := len(p) - 1
		for p[j] <= p[i] {
			j--
		}
		p[i], p[j] = p[j], p[i]
		for l, r := i+1, len(p)-1; l < r; l, r = l+1, r-1 {
			p[l], p[r] = p[r], p[l]
		}
	}
}

func toAssets(ids []string) []types.Asset {
	out := make([]types.Asset, len(ids))
	for i, id := range ids {
		out[i] = types.Asset(id)
	}
	return out
}
