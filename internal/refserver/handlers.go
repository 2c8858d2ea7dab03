package refserver

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mmynk/posclient/internal/api"
	"github.com/mmynk/posclient/internal/auth"
	"github.com/mmynk/posclient/internal/middleware"
	"github.com/mmynk/posclient/internal/models"
)

var knownStatuses = map[string]bool{
	models.StatusPending:   true,
	models.StatusPreparing: true,
	models.StatusReady:     true,
	models.StatusDelivered: true,
	models.StatusPaid:      true,
	models.StatusCancelled: true,
}

func message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

func invalid(c *gin.Context, fields map[string][]string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"message": "The given data was invalid.",
		"errors":  fields,
	})
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		message(c, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}

// readForm parses a multipart body and records its text fields for LastForm.
func (s *Backend) readForm(c *gin.Context) (map[string][]string, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		message(c, http.StatusBadRequest, "Expected multipart form data.")
		return nil, false
	}
	key := routeKey(c.Request.Method, strings.TrimPrefix(c.FullPath(), "/api"))
	s.mu.Lock()
	s.lastForms[key] = form.Value
	s.mu.Unlock()
	return form.Value, true
}

func first(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// tunnelled rejects multipart POSTs that do not declare the logical PUT.
func tunnelled(c *gin.Context, values map[string][]string) bool {
	if first(values, api.MethodField) != http.MethodPut {
		message(c, http.StatusMethodNotAllowed, "The POST method is not supported for this route.")
		return false
	}
	return true
}

func (s *Backend) uploadURL(c *gin.Context, field, dir string) (*string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	url := fmt.Sprintf("%s/storage/%s/%s", s.publicURL, dir, filepath.Base(fh.Filename))
	return &url, nil
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Backend) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, map[string][]string{"email": {"The email and password fields are required."}})
		return
	}
	user, err := auth.NewPasswordAuthenticator(s).Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		message(c, http.StatusUnauthorized, err.Error())
		return
	}
	token, err := s.jwt.Generate(user)
	if err != nil {
		message(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

func (s *Backend) logout(c *gin.Context) {
	s.mu.Lock()
	s.revoked[middleware.GetToken(c)] = true
	s.mu.Unlock()
	message(c, http.StatusOK, "Successfully logged out")
}

func (s *Backend) currentUser(c *gin.Context) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountByIDLocked(middleware.GetUserID(c))
	if a == nil {
		message(c, http.StatusUnauthorized, "Unauthenticated.")
		return models.User{}, false
	}
	return a.user, true
}

func (s *Backend) userProfile(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	s.mu.Lock()
	envelope := s.envelope
	s.mu.Unlock()

	switch envelope {
	case EnvelopeData:
		c.JSON(http.StatusOK, gin.H{"data": user})
	case EnvelopeRaw:
		c.JSON(http.StatusOK, user)
	default:
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

func (s *Backend) profile(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (s *Backend) updateProfile(c *gin.Context) {
	values, ok := s.readForm(c)
	if !ok {
		return
	}
	if _, has := values[api.MethodField]; has {
		message(c, http.StatusMethodNotAllowed, "The PUT method is not supported for this route.")
		return
	}
	photo, err := s.uploadURL(c, "photo", "photos")
	if err != nil {
		message(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountByIDLocked(middleware.GetUserID(c))
	if a == nil {
		message(c, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	if fields := s.validateAccountLocked(values, a.user.ID, false); len(fields) > 0 {
		invalid(c, fields)
		return
	}
	a.user.Name = first(values, "name")
	a.user.Email = first(values, "email")
	if phone := first(values, "phone"); phone != "" {
		a.user.Phone = strPtr(phone)
	} else {
		a.user.Phone = nil
	}
	if photo != nil {
		a.user.PhotoURL = photo
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": a.user})
}

type passwordRequest struct {
	CurrentPassword      string `json:"current_password"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (s *Backend) changePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		message(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountByIDLocked(middleware.GetUserID(c))
	if a == nil {
		message(c, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	fields := map[string][]string{}
	if !auth.CheckPassword(a.hash, req.CurrentPassword) {
		fields["current_password"] = []string{"The current password is incorrect."}
	}
	if err := auth.NewPasswordAuthenticator(s).ValidateCredential(req.Password); err != nil {
		fields["password"] = append(fields["password"], err.Error())
	}
	if req.Password != req.PasswordConfirmation {
		fields["password"] = append(fields["password"], "The password confirmation does not match.")
	}
	if len(fields) > 0 {
		invalid(c, fields)
		return
	}
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		message(c, http.StatusInternalServerError, err.Error())
		return
	}
	a.hash = hash
	message(c, http.StatusOK, "Password updated")
}

func (s *Backend) listAreas(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"data": s.areas})
}

// listCategories answers with a bare array, unlike most list endpoints.
func (s *Backend) listCategories(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.categories)
}

func (s *Backend) listProducts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"data": s.products})
}

func (s *Backend) listOrders(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"data": s.orders})
}

func (s *Backend) createOrder(c *gin.Context) {
	var req models.NewOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		message(c, http.StatusBadRequest, err.Error())
		return
	}
	waiter, ok := s.currentUser(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOrder = &req

	fields := map[string][]string{}
	if _, ok := s.areaLocked(req.AreaID); !ok {
		fields["area_id"] = []string{"The selected area is invalid."}
	}
	if req.OrderType != models.OrderTypeDineIn {
		fields["order_type"] = []string{"The selected order type is invalid."}
	}
	if len(req.Items) == 0 {
		fields["items"] = []string{"The items field is required."}
	}
	for i, item := range req.Items {
		if _, ok := s.productLocked(item.ProductID); !ok {
			fields[fmt.Sprintf("items.%d.product_id", i)] = []string{"The selected product is invalid."}
		}
		if item.Quantity < 1 {
			fields[fmt.Sprintf("items.%d.quantity", i)] = []string{"The quantity must be at least 1."}
		}
	}
	if len(fields) > 0 {
		invalid(c, fields)
		return
	}

	o := s.buildOrderLocked(waiter, req)
	s.orders = append([]*models.Order{o}, s.orders...)
	c.JSON(http.StatusCreated, gin.H{"message": "Order created", "data": o})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Backend) updateOrderStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		message(c, http.StatusBadRequest, err.Error())
		return
	}
	if !knownStatuses[req.Status] {
		invalid(c, map[string][]string{"status": {"The selected status is invalid."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.findOrderLocked(id)
	if o == nil {
		message(c, http.StatusNotFound, "Order not found.")
		return
	}
	o.Status = req.Status
	c.JSON(http.StatusOK, gin.H{"data": o})
}

func (s *Backend) invoice(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	o := s.findOrderLocked(id)
	var body string
	if o != nil {
		body = fmt.Sprintf("%%PDF-1.4\n%% invoice %d table %s total %s\n%%%%EOF\n", o.ID, o.TableNumber, *o.FormattedTotal)
	}
	filename := s.invoiceName
	s.mu.Unlock()
	if o == nil {
		message(c, http.StatusNotFound, "Order not found.")
		return
	}
	if filename == nil {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="factura-%d.pdf"`, id))
	} else {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, *filename))
	}
	c.Data(http.StatusOK, "application/pdf", []byte(body))
}

func (s *Backend) productFromFormLocked(values map[string][]string, p *models.Product) map[string][]string {
	fields := map[string][]string{}
	name := strings.TrimSpace(first(values, "name"))
	if name == "" {
		fields["name"] = []string{"The name field is required."}
	}
	price, err := strconv.ParseFloat(first(values, "price"), 64)
	if err != nil || price < 0 {
		fields["price"] = []string{"The price must be a positive number."}
	}
	categoryID, _ := strconv.ParseInt(first(values, "category_id"), 10, 64)
	categoryName := s.categoryNameLocked(categoryID)
	if categoryName == "" {
		fields["category_id"] = []string{"The selected category is invalid."}
	}
	if len(fields) > 0 {
		return fields
	}

	p.Name = name
	p.Price = models.Money(price)
	p.CategoryID = categoryID
	p.CategoryName = categoryName
	if d := first(values, "description"); d != "" {
		p.Description = strPtr(d)
	}
	if v, ok := values["is_active"]; ok && len(v) > 0 {
		p.IsActive = v[0] == "1" || v[0] == "true"
	}
	return nil
}

func (s *Backend) createProduct(c *gin.Context) {
	values, ok := s.readForm(c)
	if !ok {
		return
	}
	image, err := s.uploadURL(c, "image", "products")
	if err != nil {
		message(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Product{IsActive: true, ImageURL: image}
	if fields := s.productFromFormLocked(values, &p); len(fields) > 0 {
		invalid(c, fields)
		return
	}
	p.ID = s.next("product")
	s.products = append(s.products, p)
	c.JSON(http.StatusCreated, gin.H{"message": "Product created", "data": p})
}

func (s *Backend) updateProduct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	values, ok := s.readForm(c)
	if !ok || !tunnelled(c, values) {
		return
	}
	image, err := s.uploadURL(c, "image", "products")
	if err != nil {
		message(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID != id {
			continue
		}
		p := s.products[i]
		if fields := s.productFromFormLocked(values, &p); len(fields) > 0 {
			invalid(c, fields)
			return
		}
		if image != nil {
			p.ImageURL = image
		}
		s.products[i] = p
		c.JSON(http.StatusOK, gin.H{"message": "Product updated", "data": p})
		return
	}
	message(c, http.StatusNotFound, "Product not found.")
}

func (s *Backend) deleteProduct(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.products {
		if p.ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			message(c, http.StatusOK, "Product deleted")
			return
		}
	}
	message(c, http.StatusNotFound, "Product not found.")
}

func (s *Backend) listUsers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]models.User, len(s.accounts))
	for i, a := range s.accounts {
		users[i] = a.user
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

// validateAccountLocked checks the account fields shared by profile and
// roster forms. selfID is excluded from the unique email check.
func (s *Backend) validateAccountLocked(values map[string][]string, selfID int64, withRole bool) map[string][]string {
	fields := map[string][]string{}
	if strings.TrimSpace(first(values, "name")) == "" {
		fields["name"] = []string{"The name field is required."}
	}
	email := first(values, "email")
	if !strings.Contains(email, "@") {
		fields["email"] = []string{"The email must be a valid email address."}
	} else if other := s.accountByEmailLocked(email); other != nil && other.user.ID != selfID {
		fields["email"] = []string{"The email has already been taken."}
	}
	if withRole && !models.Role(first(values, "role")).Valid() {
		fields["role"] = []string{"The selected role is invalid."}
	}
	return fields
}

func applyAccount(u *models.User, values map[string][]string) {
	u.Name = first(values, "name")
	u.Email = first(values, "email")
	u.Role = models.Role(first(values, "role"))
	if phone := first(values, "phone"); phone != "" {
		u.Phone = strPtr(phone)
	}
	if v, ok := values["is_active"]; ok && len(v) > 0 {
		u.IsActive = v[0] == "1" || v[0] == "true"
	}
}

func (s *Backend) createUser(c *gin.Context) {
	values, ok := s.readForm(c)
	if !ok {
		return
	}
	photo, err := s.uploadURL(c, "photo", "photos")
	if err != nil {
		message(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fields := s.validateAccountLocked(values, 0, true)
	password := first(values, "password")
	if err := auth.NewPasswordAuthenticator(s).ValidateCredential(password); err != nil {
		fields["password"] = []string{err.Error()}
	}
	if len(fields) > 0 {
		invalid(c, fields)
		return
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		message(c, http.StatusInternalServerError, err.Error())
		return
	}
	u := models.User{ID: s.next("user"), IsActive: true, PhotoURL: photo}
	applyAccount(&u, values)
	s.accounts = append(s.accounts, &account{user: u, hash: hash})
	c.JSON(http.StatusCreated, gin.H{"message": "User created", "user": u})
}

func (s *Backend) updateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	values, ok := s.readForm(c)
	if !ok || !tunnelled(c, values) {
		return
	}
	photo, err := s.uploadURL(c, "photo", "photos")
	if err != nil {
		message(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountByIDLocked(id)
	if a == nil {
		message(c, http.StatusNotFound, "User not found.")
		return
	}
	fields := s.validateAccountLocked(values, id, true)
	password := first(values, "password")
	if password != "" {
		if err := auth.NewPasswordAuthenticator(s).ValidateCredential(password); err != nil {
			fields["password"] = []string{err.Error()}
		}
	}
	if len(fields) > 0 {
		invalid(c, fields)
		return
	}
	if password != "" {
		hash, err := s.hashPassword(password)
		if err != nil {
			message(c, http.StatusInternalServerError, err.Error())
			return
		}
		a.hash = hash
	}
	applyAccount(&a.user, values)
	if photo != nil {
		a.user.PhotoURL = photo
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated", "user": a.user})
}

func (s *Backend) deleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if id == middleware.GetUserID(c) {
		invalid(c, map[string][]string{"id": {"You cannot delete your own account."}})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.accounts {
		if a.user.ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			message(c, http.StatusOK, "User deleted")
			return
		}
	}
	message(c, http.StatusNotFound, "User not found.")
}
